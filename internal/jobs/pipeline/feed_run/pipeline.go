package feed_run

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/dispatch"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/orchestrator"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"

	jobrt "github.com/yungbote/essayfeed-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}

	jc.Progress("load", 1, "Loading feed")
	mirror := &progressSink{next: jc.Sink, jc: jc, stage: "load"}
	res, err := p.runner.RunByID(jc.Ctx, jc.Job.FeedID, jc.EssayRef(), mirror)
	if err != nil {
		jc.Fail(mirror.currentStage(), err, retryable(err))
		return nil
	}

	p.log.Info("feed run finished", "job_id", jc.Job.ID, "feed_id", jc.Job.FeedID, "steps", len(res.Steps))
	jc.Succeed("done", res)
	return nil
}

// retryable is false for errors another attempt cannot fix. Cancellation stays retryable so a
// run interrupted by shutdown is picked up again.
func retryable(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, orchestrator.ErrFeedNotFound),
		errors.Is(err, orchestrator.ErrFeedDisabled),
		errors.Is(err, feed.ErrInvalidStep),
		errors.Is(err, dispatch.ErrCredential),
		errors.Is(err, dispatch.ErrUnknownProvider),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return false
	}
	return true
}

// progressSink forwards every event and mirrors coarse progress onto the job row. Pooled steps
// report per-request progress; streamed steps only move the stage.
type progressSink struct {
	next sink.Sink
	jc   *jobrt.Context

	mu    sync.Mutex
	stage string
}

func (s *progressSink) Emit(eventType string, payload map[string]any, isError bool) {
	s.next.Emit(eventType, payload, isError)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch eventType {
	case sink.EventFeedStart:
		s.stage = "running"
		s.jc.Progress(s.stage, 5, fmt.Sprintf("Running %v", payload["name"]))
	case sink.EventBatchProcessing:
		s.stage = "dispatch"
		s.jc.Progress(s.stage, 10, fmt.Sprintf("Dispatching %v prompts", payload["total"]))
	case sink.EventParallelProgress:
		frac, _ := payload["progress"].(float64)
		s.jc.Progress(s.stage, 10+int(80*frac), "")
	case sink.EventParallelComplete:
		s.stage = "running"
	}
}

func (s *progressSink) currentStage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}
