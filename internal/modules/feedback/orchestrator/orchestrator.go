// Package orchestrator runs a feed's steps against one essay: expand each prompt, dispatch it,
// persist the output and report progress to the caller's sink.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/dispatch"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/mergetag"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/resolver"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/writer"
	"github.com/yungbote/essayfeed-backend/internal/platform/ctxutil"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
)

var (
	ErrFeedNotFound = errors.New("feed not found")
	ErrFeedDisabled = errors.New("feed disabled")
)

type StepDispatcher interface {
	Run(ctx context.Context, step feed.Step, meta dispatch.CallMeta, exp mergetag.Expansion, s sink.Sink) (*dispatch.Result, error)
}

type OutputWriter interface {
	SaveStepOutput(ctx context.Context, ref feed.EssayRef, f *feed.Feed, stepType feed.StepType, out writer.Output) (writer.Outcome, error)
}

type StepOutput struct {
	Type       string         `json:"type"`
	Content    string         `json:"content"`
	Variants   int            `json:"variants"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Outcome    writer.Outcome `json:"outcome"`
	Error      string         `json:"error,omitempty"`
}

type Result struct {
	FeedID  uuid.UUID `json:"feed_id"`
	EssayID uuid.UUID `json:"essay_id"`
	// Feedback is the last step's output.
	Feedback string       `json:"feedback"`
	Steps    []StepOutput `json:"steps"`
}

type Orchestrator struct {
	feeds      repos.FeedRepo
	resolver   mergetag.Resolver
	dispatcher StepDispatcher
	writer     OutputWriter
	log        *logger.Logger
	tracer     trace.Tracer
}

func New(feeds repos.FeedRepo, resolver mergetag.Resolver, dispatcher StepDispatcher, w OutputWriter, baseLog *logger.Logger) *Orchestrator {
	return &Orchestrator{
		feeds:      feeds,
		resolver:   resolver,
		dispatcher: dispatcher,
		writer:     w,
		log:        baseLog.With("component", "Orchestrator"),
		tracer:     otel.Tracer("essayfeed/orchestrator"),
	}
}

// Load reads and validates a stored feed.
func (o *Orchestrator) Load(ctx context.Context, feedID uuid.UUID) (*feed.Feed, error) {
	rec, err := o.feeds.GetByID(ctx, nil, feedID)
	if err != nil {
		return nil, fmt.Errorf("load feed %s: %w", feedID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	if !rec.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrFeedDisabled, feedID)
	}
	return feed.FromRecord(rec)
}

// RunByID loads the feed and processes it. Load failures are reported as feed_error.
func (o *Orchestrator) RunByID(ctx context.Context, feedID uuid.UUID, ref feed.EssayRef, s sink.Sink) (*Result, error) {
	f, err := o.Load(ctx, feedID)
	if err != nil {
		s.Emit(sink.EventFeedError, map[string]any{
			"feed_id":  feedID.String(),
			"essay_id": ref.EssayID.String(),
			"error":    err.Error(),
		}, true)
		return nil, err
	}
	return o.ProcessFeed(ctx, f, ref, s)
}

// ProcessFeed runs every step in order. Only configuration errors and cancellation are returned;
// request and write failures degrade the step's output instead.
func (o *Orchestrator) ProcessFeed(ctx context.Context, f *feed.Feed, ref feed.EssayRef, s sink.Sink) (*Result, error) {
	if s == nil {
		s = sink.Discard
	}
	ctx, span := o.tracer.Start(ctx, "feed.process", trace.WithAttributes(
		attribute.String("feed.id", f.ID.String()),
		attribute.String("feed.apply_to", f.ApplyTo),
		attribute.String("essay.id", ref.EssayID.String()),
		attribute.Int("feed.steps", len(f.Steps)),
	))
	defer span.End()

	log := o.log.With(append([]interface{}{"feed_id", f.ID, "essay_id", ref.EssayID}, ctxutil.LogFields(ctx)...)...)
	res := &Result{FeedID: f.ID, EssayID: ref.EssayID}

	fail := func(stepIndex int, stepType feed.StepType, err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		payload := map[string]any{
			"feed_id":  f.ID.String(),
			"essay_id": ref.EssayID.String(),
			"error":    err.Error(),
		}
		if stepIndex >= 0 {
			payload["step_index"] = stepIndex
			payload["step_type"] = string(stepType)
		}
		s.Emit(sink.EventFeedError, payload, true)
		log.Warn("feed failed", "step_index", stepIndex, "error", err)
		return res, err
	}

	if len(f.Steps) == 0 {
		return fail(-1, "", fmt.Errorf("%w: feed has no steps", feed.ErrInvalidStep))
	}

	start := map[string]any{
		"feed_id":  f.ID.String(),
		"name":     f.Name,
		"criteria": f.Criteria,
		"apply_to": f.ApplyTo,
		"essay_id": ref.EssayID.String(),
		"steps":    len(f.Steps),
	}
	if ref.SegmentID != nil {
		start["segment_id"] = ref.SegmentID.String()
	}
	s.Emit(sink.EventFeedStart, start, false)

	for i, step := range f.Steps {
		out, err := o.runStep(ctx, f, ref, i, step, s)
		if err != nil {
			return fail(i, step.Type, err)
		}
		res.Steps = append(res.Steps, out)
	}
	res.Feedback = res.Steps[len(res.Steps)-1].Content

	s.Emit(sink.EventFeedComplete, map[string]any{
		"feed_id":  f.ID.String(),
		"essay_id": ref.EssayID.String(),
		"feedback": res.Feedback,
		"steps":    res.Steps,
	}, false)
	log.Info("feed complete", "steps", len(res.Steps))
	return res, nil
}

func (o *Orchestrator) runStep(ctx context.Context, f *feed.Feed, ref feed.EssayRef, index int, step feed.Step, s sink.Sink) (StepOutput, error) {
	ctx, span := o.tracer.Start(ctx, "feed.step", trace.WithAttributes(
		attribute.Int("step.index", index),
		attribute.String("step.type", string(step.Type)),
		attribute.String("step.provider", step.Config.Provider),
	))
	defer span.End()

	out := StepOutput{Type: string(step.Type)}
	if err := checkStep(step); err != nil {
		return out, err
	}

	exp, err := mergetag.Expand(ctx, step.Config.Prompt, ref, o.resolver)
	if err != nil {
		return out, err
	}
	out.Variants = len(exp.Prompts())

	feedID := f.ID
	essayID := ref.EssayID
	result, err := o.dispatcher.Run(ctx, step, dispatch.CallMeta{FeedID: &feedID, EssayID: &essayID, StepType: string(step.Type)}, exp, s)
	if err != nil {
		return out, err
	}
	out.Content = result.Content
	out.Successful = result.Successful
	out.Failed = result.Failed
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	if result.Streamed && result.Err != nil {
		// Columns fill once; a cut-off reply is reported but never stored.
		out.Outcome = writer.Outcome{Status: writer.StatusNoop, Column: step.Type.Column()}
		span.SetAttributes(attribute.String("write.status", string(writer.StatusNoop)))
		o.log.Warn("streamed step failed; output not persisted", "feed_id", f.ID, "step_index", index, "error", result.Err)
		return out, nil
	}

	wout := writer.Output{Content: result.Content}
	if !result.Streamed {
		wout.Variants = result.VariantContents()
	}
	if f.SegmentScope() {
		wout.SegmentFilters = resolver.SegmentFilters(step.Config.Prompt, ref)
	}
	outcome, err := o.writer.SaveStepOutput(ctx, ref, f, step.Type, wout)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return out, cerr
		}
		span.RecordError(err)
		o.log.Error("persist step output failed", "feed_id", f.ID, "step_index", index, "error", err)
		if out.Error == "" {
			out.Error = err.Error()
		}
	}
	out.Outcome = outcome
	span.SetAttributes(attribute.String("write.status", string(outcome.Status)))
	return out, nil
}

func checkStep(step feed.Step) error {
	var missing []string
	if strings.TrimSpace(step.Config.Prompt) == "" {
		missing = append(missing, "prompt")
	}
	if strings.TrimSpace(step.Config.Provider) == "" {
		missing = append(missing, "provider")
	}
	if strings.TrimSpace(step.Config.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s step missing %s", feed.ErrInvalidStep, step.Type, strings.Join(missing, ", "))
	}
	return nil
}

type StepPreview struct {
	Type    string   `json:"type"`
	IsList  bool     `json:"is_list"`
	Prompts []string `json:"prompts"`
}

// Preview expands every step's prompt without dispatching anything.
func (o *Orchestrator) Preview(ctx context.Context, f *feed.Feed, ref feed.EssayRef) ([]StepPreview, error) {
	out := make([]StepPreview, 0, len(f.Steps))
	for _, step := range f.Steps {
		exp, err := mergetag.Expand(ctx, step.Config.Prompt, ref, o.resolver)
		if err != nil {
			return nil, err
		}
		out = append(out, StepPreview{Type: string(step.Type), IsList: exp.IsList, Prompts: exp.Prompts()})
	}
	return out, nil
}
