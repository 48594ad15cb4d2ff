package writer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/segments"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type fixture struct {
	db              *gorm.DB
	w               *Writer
	essays          repos.EssayRepo
	segments        repos.SegmentRepo
	essayFeedback   repos.EssayFeedbackRepo
	segmentFeedback repos.SegmentFeedbackRepo
	essay           *types.Essay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:              db,
		essays:          repos.NewEssayRepo(db, log),
		segments:        repos.NewSegmentRepo(db, log),
		essayFeedback:   repos.NewEssayFeedbackRepo(db, log),
		segmentFeedback: repos.NewSegmentFeedbackRepo(db, log),
	}
	f.w = New(db, f.essays, f.segments, f.essayFeedback, f.segmentFeedback, log)
	f.essay = &types.Essay{Title: "Later starts", Question: "Should school start later?", Content: "Yes."}
	if _, err := f.essays.Create(context.Background(), nil, []*types.Essay{f.essay}); err != nil {
		t.Fatalf("create essay: %v", err)
	}
	return f
}

func (f *fixture) seedSegments(t *testing.T, segs ...*types.Segment) {
	t.Helper()
	for _, s := range segs {
		s.EssayID = f.essay.ID
	}
	if _, err := f.segments.Create(context.Background(), nil, segs); err != nil {
		t.Fatalf("create segments: %v", err)
	}
}

func essayFeed(criteria string) *feed.Feed {
	return &feed.Feed{ID: uuid.New(), Name: "clarity", Criteria: criteria, ApplyTo: feed.ScopeEssay}
}

func TestSaveEssayCreateFillSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := feed.EssayRef{EssayID: f.essay.ID}
	fd := essayFeed("clarity")

	got, err := f.w.SaveStepOutput(ctx, ref, fd, feed.StepChainOfThought, Output{Content: "thinking"})
	if err != nil || got.Status != StatusCreated || got.Column != types.FeedbackColumnCoT {
		t.Fatalf("first save: %+v err=%v", got, err)
	}

	got, err = f.w.SaveStepOutput(ctx, ref, fd, feed.StepFeedback, Output{Content: "Clear and direct."})
	if err != nil || got.Status != StatusFilled {
		t.Fatalf("fill: %+v err=%v", got, err)
	}

	got, err = f.w.SaveStepOutput(ctx, ref, fd, feed.StepFeedback, Output{Content: "overwrite attempt"})
	if err != nil || got.Status != StatusSkipped {
		t.Fatalf("skip: %+v err=%v", got, err)
	}

	row, err := f.essayFeedback.GetBySubjectCriteria(ctx, nil, f.essay.ID, "clarity")
	if err != nil || row == nil {
		t.Fatalf("load: row=%v err=%v", row, err)
	}
	if row.CoT != "thinking" || row.Feedback != "Clear and direct." || row.Score != "" {
		t.Fatalf("row=%+v", row)
	}
}

func TestSaveEssayEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: f.essay.ID}, essayFeed("x"), feed.StepScoring, Output{Content: "  "})
	if err != nil || got.Status != StatusNoop {
		t.Fatalf("empty output: %+v err=%v", got, err)
	}
	got, err = f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: uuid.New()}, essayFeed("x"), feed.StepScoring, Output{Content: "8/10"})
	if err != nil || got.Status != StatusNotFound {
		t.Fatalf("missing essay: %+v err=%v", got, err)
	}
}

func TestSaveParagraphsCreatesSegmentsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := feed.EssayRef{EssayID: f.essay.ID}
	fd := &feed.Feed{Criteria: "structure", ApplyTo: feed.ScopeParagraph}

	out := Output{
		Content: "ignored when variants exist",
		Variants: []string{
			"Paragraph - Opening\nIntroduction: Schools should start later.",
			"",
			"Paragraph - Closing\nConclusion: Everyone benefits.",
		},
	}
	got, err := f.w.SaveStepOutput(ctx, ref, fd, feed.StepFeedback, out)
	if err != nil || got.Status != StatusSegmentsCreated || got.Created != 2 {
		t.Fatalf("first run: %+v err=%v", got, err)
	}

	list, err := f.segments.ListByEssayID(ctx, nil, f.essay.ID, nil)
	if err != nil || len(list) != 2 {
		t.Fatalf("segments: len=%d err=%v", len(list), err)
	}
	if list[0].Type != segments.TypeIntroduction || list[1].Type != segments.TypeConclusion || list[1].Order != 2 {
		t.Fatalf("segments=%+v %+v", list[0], list[1])
	}

	got, err = f.w.SaveStepOutput(ctx, ref, fd, feed.StepFeedback, out)
	if err != nil || got.Status != StatusSegmentsExist {
		t.Fatalf("second run: %+v err=%v", got, err)
	}
	if n, _ := f.segments.CountByEssayID(ctx, nil, f.essay.ID); n != 2 {
		t.Fatalf("count=%d", n)
	}
}

func TestSaveSegmentScopeZipsVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	intro := &types.Segment{Title: "Intro", Content: "a", Type: "introduction", Order: 1}
	mp1 := &types.Segment{Title: "MP1", Content: "b", Type: "main-point", Order: 2}
	mp2 := &types.Segment{Title: "MP2", Content: "c", Type: "main-point", Order: 3}
	f.seedSegments(t, intro, mp1, mp2)

	fd := &feed.Feed{Criteria: "evidence", ApplyTo: "main-point"}
	got, err := f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: f.essay.ID}, fd, feed.StepFeedback, Output{
		Variants: []string{"first point feedback", "second point feedback", "extra"},
	})
	if err != nil || got.Created != 2 || got.Status != StatusCreated {
		t.Fatalf("zip: %+v err=%v", got, err)
	}
	for seg, want := range map[uuid.UUID]string{mp1.ID: "first point feedback", mp2.ID: "second point feedback"} {
		row, err := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, seg, "evidence")
		if err != nil || row == nil || row.Feedback != want {
			t.Fatalf("segment %s: row=%+v err=%v", seg, row, err)
		}
	}
	if row, _ := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, intro.ID, "evidence"); row != nil {
		t.Fatalf("introduction should not receive main-point feedback: %+v", row)
	}

	target := intro.ID
	got, err = f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: f.essay.ID, SegmentID: &target}, fd, feed.StepScoring, Output{Content: "7"})
	if err != nil || got.Status != StatusCreated || got.Created != 1 {
		t.Fatalf("explicit segment: %+v err=%v", got, err)
	}

	other := uuid.New()
	got, err = f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: f.essay.ID, SegmentID: &other}, fd, feed.StepScoring, Output{Content: "7"})
	if err != nil || got.Status != StatusNotFound {
		t.Fatalf("foreign segment: %+v err=%v", got, err)
	}
}

func TestParagraphFeedExtractsOnlyFromFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := feed.EssayRef{EssayID: f.essay.ID}
	fd := &feed.Feed{Criteria: "structure", ApplyTo: feed.ScopeParagraph}

	for _, st := range []feed.StepType{feed.StepChainOfThought, feed.StepScoring} {
		got, err := f.w.SaveStepOutput(ctx, ref, fd, st, Output{Content: "Let me think about the essay.\nThe first paragraph is weak."})
		if err != nil || got.Status != StatusNoop {
			t.Fatalf("%s: %+v err=%v", st, got, err)
		}
	}
	if n, _ := f.segments.CountByEssayID(ctx, nil, f.essay.ID); n != 0 {
		t.Fatalf("reasoning output became %d segments", n)
	}

	got, err := f.w.SaveStepOutput(ctx, ref, fd, feed.StepFeedback, Output{Content: "Paragraph - Opening\nIntroduction: Schools should start later."})
	if err != nil || got.Status != StatusSegmentsCreated || got.Created != 1 {
		t.Fatalf("feedback step: %+v err=%v", got, err)
	}
	list, err := f.segments.ListByEssayID(ctx, nil, f.essay.ID, nil)
	if err != nil || len(list) != 1 || list[0].Type != segments.TypeIntroduction {
		t.Fatalf("segments=%v err=%v", list, err)
	}
}

func TestSaveSegmentScopeFollowsTagFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	intro := &types.Segment{Title: "Intro", Content: "a", Type: "introduction", Order: 1}
	mp1 := &types.Segment{Title: "MP1", Content: "b", Type: "main-point", Order: 2}
	concl := &types.Segment{Title: "End", Content: "c", Type: "conclusion", Order: 3}
	mp2 := &types.Segment{Title: "MP2", Content: "d", Type: "main-point", Order: 4}
	f.seedSegments(t, intro, mp1, concl, mp2)

	fd := &feed.Feed{Criteria: "support", ApplyTo: feed.ScopeSegment}
	got, err := f.w.SaveStepOutput(ctx, feed.EssayRef{EssayID: f.essay.ID}, fd, feed.StepFeedback, Output{
		Variants:       []string{"on MP1", "on MP2"},
		SegmentFilters: repos.Filters{"type": "main-point"},
	})
	if err != nil || got.Created != 2 {
		t.Fatalf("save: %+v err=%v", got, err)
	}
	for seg, want := range map[uuid.UUID]string{mp1.ID: "on MP1", mp2.ID: "on MP2"} {
		row, err := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, seg, "support")
		if err != nil || row == nil || row.Feedback != want {
			t.Fatalf("segment %s: row=%+v err=%v", seg, row, err)
		}
	}
	for _, seg := range []*types.Segment{intro, concl} {
		if row, _ := f.segmentFeedback.GetBySubjectCriteria(ctx, nil, seg.ID, "support"); row != nil {
			t.Fatalf("%s received feedback: %+v", seg.Type, row)
		}
	}
}
