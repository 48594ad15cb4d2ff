package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/dispatch"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/resolver"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/vault"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/writer"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

// echoProvider wraps every prompt so tests can see exactly what was sent.
type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Stream(_ context.Context, _ vault.Credential, req dispatch.Request, onDelta func(string)) (string, error) {
	onDelta("<")
	onDelta(req.Prompt)
	onDelta(">")
	return "<" + req.Prompt + ">", nil
}

func (echoProvider) Complete(_ context.Context, _ vault.Credential, req dispatch.Request) (string, error) {
	return "[" + req.Prompt + "]", nil
}

type fixture struct {
	orch            *Orchestrator
	feeds           repos.FeedRepo
	essayFeedback   repos.EssayFeedbackRepo
	segmentFeedback repos.SegmentFeedbackRepo
	essay           *types.Essay
	segs            []*types.Segment
}

// cutoffProvider streams part of a reply and then drops the connection while broken is set.
type cutoffProvider struct {
	broken *bool
}

func (cutoffProvider) Name() string { return "echo" }

func (p cutoffProvider) Stream(_ context.Context, _ vault.Credential, _ dispatch.Request, onDelta func(string)) (string, error) {
	if *p.broken {
		onDelta("Band 6. The ess")
		return "Band 6. The ess", errors.New("connection reset")
	}
	onDelta("Band 6. The essay answers the question.")
	return "Band 6. The essay answers the question.", nil
}

func (cutoffProvider) Complete(context.Context, vault.Credential, dispatch.Request) (string, error) {
	return "", errors.New("not used")
}

func newFixture(t *testing.T, v vault.Vault) *fixture {
	t.Helper()
	return newFixtureWithProvider(t, v, echoProvider{})
}

func newFixtureWithProvider(t *testing.T, v vault.Vault, p dispatch.Provider) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	essays := repos.NewEssayRepo(db, log)
	segments := repos.NewSegmentRepo(db, log)
	essayFeedback := repos.NewEssayFeedbackRepo(db, log)
	segmentFeedback := repos.NewSegmentFeedbackRepo(db, log)
	feeds := repos.NewFeedRepo(db, log)

	e := &types.Essay{Title: "Later starts", Question: "Discuss X", Content: "Body."}
	if _, err := essays.Create(ctx, nil, []*types.Essay{e}); err != nil {
		t.Fatalf("create essay: %v", err)
	}
	segs := []*types.Segment{
		{EssayID: e.ID, Title: "Introduction", Type: "introduction", Content: "Intro text.", Order: 1},
		{EssayID: e.ID, Title: "Conclusion", Type: "conclusion", Content: "Closing text.", Order: 2},
	}
	if _, err := segments.Create(ctx, nil, segs); err != nil {
		t.Fatalf("create segments: %v", err)
	}

	res := resolver.New(resolver.NewRepoSource(essays, segments, essayFeedback, segmentFeedback), log)
	disp := dispatch.New(dispatch.NewRegistry(p), v, dispatch.Options{}, log)
	w := writer.New(db, essays, segments, essayFeedback, segmentFeedback, log)

	return &fixture{
		orch:            New(feeds, res, disp, w, log),
		feeds:           feeds,
		essayFeedback:   essayFeedback,
		segmentFeedback: segmentFeedback,
		essay:           e,
		segs:            segs,
	}
}

func (f *fixture) seedFeed(t *testing.T, criteria, applyTo string, steps ...feed.StoredStep) *types.Feed {
	t.Helper()
	raw, err := feed.EncodeSteps(steps...)
	if err != nil {
		t.Fatalf("EncodeSteps: %v", err)
	}
	rec := &types.Feed{Name: criteria, Criteria: criteria, ApplyTo: applyTo, Steps: raw}
	if _, err := f.feeds.Create(context.Background(), nil, []*types.Feed{rec}); err != nil {
		t.Fatalf("create feed: %v", err)
	}
	return rec
}

func step(kind, prompt string) feed.StoredStep {
	return feed.StoredStep{Type: kind, Config: map[string]map[string]any{
		feed.SectionGeneral: {"englishPrompt": prompt, "apiProvider": "echo", "model": "m"},
	}}
}

func TestProcessFeedChainsStepsThroughTheStore(t *testing.T) {
	f := newFixture(t, vault.Static{"echo": "k"})
	ctx := context.Background()
	rec := f.seedFeed(t, "clarity", feed.ScopeEssay,
		step("chain-of-thought", "Think: {|essay:question||}"),
		step("scoring", "Score with {Notes: |essay_feedback:cot[criteria:clarity]|}"),
	)
	events := &sink.Recorder{}

	res, err := f.orch.RunByID(ctx, rec.ID, feed.EssayRef{EssayID: f.essay.ID}, events)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}

	wantFeedback := "<Score with Notes: <Think: Discuss X>>"
	if res.Feedback != wantFeedback {
		t.Fatalf("feedback=%q want %q", res.Feedback, wantFeedback)
	}
	if len(res.Steps) != 2 || res.Steps[0].Content != "<Think: Discuss X>" {
		t.Fatalf("steps=%+v", res.Steps)
	}
	if res.Steps[0].Outcome.Status != writer.StatusCreated || res.Steps[1].Outcome.Status != writer.StatusFilled {
		t.Fatalf("outcomes=%+v / %+v", res.Steps[0].Outcome, res.Steps[1].Outcome)
	}

	wantTypes := []string{
		sink.EventFeedStart,
		"CHAIN_OF_THOUGHT", "CHAIN_OF_THOUGHT", "CHAIN_OF_THOUGHT",
		"SCORING", "SCORING", "SCORING",
		sink.EventFeedComplete,
	}
	if diff := cmp.Diff(wantTypes, events.Types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	done := events.OfType(sink.EventFeedComplete)[0].Payload
	if done["feedback"] != wantFeedback {
		t.Fatalf("feed_complete feedback=%v", done["feedback"])
	}
	if steps, ok := done["steps"].([]StepOutput); !ok || len(steps) != 2 {
		t.Fatalf("feed_complete steps=%v", done["steps"])
	}

	row, err := f.essayFeedback.GetBySubjectCriteria(ctx, nil, f.essay.ID, "clarity")
	if err != nil || row == nil {
		t.Fatalf("feedback row=%v err=%v", row, err)
	}
	if row.CoT != "<Think: Discuss X>" || row.Score != wantFeedback {
		t.Fatalf("row=%+v", row)
	}

	// A second run must not clobber what is stored.
	res, err = f.orch.RunByID(ctx, rec.ID, feed.EssayRef{EssayID: f.essay.ID}, sink.Discard)
	if err != nil {
		t.Fatalf("second RunByID: %v", err)
	}
	if res.Steps[0].Outcome.Status != writer.StatusSkipped {
		t.Fatalf("second run outcome=%+v", res.Steps[0].Outcome)
	}
}

func TestProcessFeedPoolsSegmentVariants(t *testing.T) {
	f := newFixture(t, vault.Static{"echo": "k"})
	ctx := context.Background()
	rec := f.seedFeed(t, "flow", feed.ScopeSegment, step("feedback", "Review: {|segment:content||}"))
	events := &sink.Recorder{}

	res, err := f.orch.RunByID(ctx, rec.ID, feed.EssayRef{EssayID: f.essay.ID}, events)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	want := strings.Join([]string{"[Review: Intro text.]", "[Review: Closing text.]"}, modifier.Separator)
	if res.Feedback != want {
		t.Fatalf("feedback=%q", res.Feedback)
	}
	if res.Steps[0].Variants != 2 || res.Steps[0].Outcome.Created != 2 {
		t.Fatalf("step=%+v", res.Steps[0])
	}
	for i, seg := range f.segs {
		row, err := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, seg.ID, "flow")
		if err != nil || row == nil {
			t.Fatalf("segment %d feedback row=%v err=%v", i, row, err)
		}
		if !strings.Contains(row.Feedback, seg.Content) {
			t.Fatalf("segment %d feedback=%q", i, row.Feedback)
		}
	}
	if n := len(events.OfType(sink.EventParallelComplete)); n != 1 {
		t.Fatalf("parallel_complete events=%d", n)
	}

	// Scoped to one segment the tag narrows to it, so the step streams a single prompt.
	target := f.segs[1].ID
	res, err = f.orch.RunByID(ctx, rec.ID, feed.EssayRef{EssayID: f.essay.ID, SegmentID: &target}, sink.Discard)
	if err != nil {
		t.Fatalf("scoped RunByID: %v", err)
	}
	if res.Steps[0].Variants != 1 || res.Feedback != "<Review: Closing text.>" {
		t.Fatalf("scoped result=%+v", res)
	}
	if res.Steps[0].Outcome.Status != writer.StatusSkipped {
		t.Fatalf("scoped outcome=%+v", res.Steps[0].Outcome)
	}
}

func TestCutOffStreamIsNotPersisted(t *testing.T) {
	broken := true
	f := newFixtureWithProvider(t, vault.Static{"echo": "k"}, cutoffProvider{broken: &broken})
	ctx := context.Background()
	rec := f.seedFeed(t, "band", feed.ScopeEssay, step("feedback", "Grade: {|essay:content||}"))
	ref := feed.EssayRef{EssayID: f.essay.ID}

	res, err := f.orch.RunByID(ctx, rec.ID, ref, sink.Discard)
	if err != nil {
		t.Fatalf("first RunByID: %v", err)
	}
	first := res.Steps[0]
	if first.Error != "connection reset" || first.Content != "Band 6. The ess" || first.Outcome.Status != writer.StatusNoop {
		t.Fatalf("failed stream step=%+v", first)
	}
	if row, _ := f.essayFeedback.GetBySubjectCriteria(ctx, nil, f.essay.ID, "band"); row != nil {
		t.Fatalf("partial output stored: %+v", row)
	}

	broken = false
	res, err = f.orch.RunByID(ctx, rec.ID, ref, sink.Discard)
	if err != nil {
		t.Fatalf("second RunByID: %v", err)
	}
	if res.Steps[0].Outcome.Status != writer.StatusCreated {
		t.Fatalf("healthy run outcome=%+v", res.Steps[0].Outcome)
	}
	row, err := f.essayFeedback.GetBySubjectCriteria(ctx, nil, f.essay.ID, "band")
	if err != nil || row == nil || row.Feedback != "Band 6. The essay answers the question." {
		t.Fatalf("stored row=%+v err=%v", row, err)
	}
}

func TestFilteredSegmentTagTargetsTheFilteredSegment(t *testing.T) {
	f := newFixture(t, vault.Static{"echo": "k"})
	ctx := context.Background()
	rec := f.seedFeed(t, "closing", feed.ScopeSegment, step("feedback", "Review: {|segment:content[type:conclusion]||}"))

	res, err := f.orch.RunByID(ctx, rec.ID, feed.EssayRef{EssayID: f.essay.ID}, sink.Discard)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	if res.Feedback != "<Review: Closing text.>" || res.Steps[0].Outcome.Created != 1 {
		t.Fatalf("result=%+v", res)
	}
	intro, conclusion := f.segs[0], f.segs[1]
	if row, _ := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, intro.ID, "closing"); row != nil {
		t.Fatalf("introduction received conclusion feedback: %+v", row)
	}
	row, err := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, conclusion.ID, "closing")
	if err != nil || row == nil || row.Feedback != "<Review: Closing text.>" {
		t.Fatalf("conclusion row=%+v err=%v", row, err)
	}
}

func TestMissingCredentialIsFatal(t *testing.T) {
	f := newFixture(t, vault.Static{})
	rec := f.seedFeed(t, "clarity", feed.ScopeEssay, step("feedback", "Hello"))
	events := &sink.Recorder{}

	_, err := f.orch.RunByID(context.Background(), rec.ID, feed.EssayRef{EssayID: f.essay.ID}, events)
	if !errors.Is(err, dispatch.ErrCredential) {
		t.Fatalf("err=%v want ErrCredential", err)
	}
	if diff := cmp.Diff([]string{sink.EventFeedStart, sink.EventFeedError}, events.Types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	last := events.Events()[1]
	if !last.IsError || last.Payload["step_index"] != 0 {
		t.Fatalf("feed_error=%+v", last)
	}
}

func TestRunByIDUnknownFeed(t *testing.T) {
	f := newFixture(t, vault.Static{"echo": "k"})
	events := &sink.Recorder{}
	_, err := f.orch.RunByID(context.Background(), uuid.New(), feed.EssayRef{EssayID: f.essay.ID}, events)
	if !errors.Is(err, ErrFeedNotFound) {
		t.Fatalf("err=%v", err)
	}
	if diff := cmp.Diff([]string{sink.EventFeedError}, events.Types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestProcessFeedHonoursCancellation(t *testing.T) {
	f := newFixture(t, vault.Static{"echo": "k"})
	rec := f.seedFeed(t, "clarity", feed.ScopeEssay, step("feedback", "{|essay:title||}"))
	loaded, err := feed.FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := &sink.Recorder{}
	_, err = f.orch.ProcessFeed(ctx, loaded, feed.EssayRef{EssayID: f.essay.ID}, events)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if n := len(events.OfType(sink.EventFeedComplete)); n != 0 {
		t.Fatalf("feed_complete emitted after cancellation")
	}
}

func TestPreviewExpandsWithoutDispatch(t *testing.T) {
	f := newFixture(t, vault.Static{})
	rec := f.seedFeed(t, "clarity", feed.ScopeEssay,
		step("scoring", "Rate: {|essay:question||}"),
		step("feedback", "{|segment:title||}"),
	)
	loaded, err := feed.FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	got, err := f.orch.Preview(context.Background(), loaded, feed.EssayRef{EssayID: f.essay.ID})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	want := []StepPreview{
		{Type: "scoring", Prompts: []string{"Rate: Discuss X"}},
		{Type: "feedback", IsList: true, Prompts: []string{"Introduction", "Conclusion"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Preview (-want +got):\n%s", diff)
	}
}
