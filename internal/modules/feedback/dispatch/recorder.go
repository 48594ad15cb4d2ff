package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

// Call is one finished upstream request, successful or not.
type Call struct {
	FeedID       *uuid.UUID
	EssayID      *uuid.UUID
	StepType     string
	Provider     string
	Model        string
	Mode         string
	VariantIndex int
	Attempts     int
	Prompt       string
	Response     string
	Err          error
	Latency      time.Duration
}

type CallRecorder interface {
	Record(ctx context.Context, call Call)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Call) {}

// CallMeta tags recorded calls with their feed and essay.
type CallMeta struct {
	FeedID   *uuid.UUID
	EssayID  *uuid.UUID
	StepType string
}

// RepoRecorder writes calls to ai_call_log. Failures are logged and dropped.
type RepoRecorder struct {
	calls repos.AICallLogRepo
	log   *logger.Logger
}

func NewRepoRecorder(calls repos.AICallLogRepo, log *logger.Logger) *RepoRecorder {
	return &RepoRecorder{calls: calls, log: log.With("component", "CallRecorder")}
}

func (r *RepoRecorder) Record(ctx context.Context, call Call) {
	row := &types.AICallLog{
		FeedID:       call.FeedID,
		EssayID:      call.EssayID,
		StepType:     call.StepType,
		Provider:     call.Provider,
		Model:        call.Model,
		Mode:         call.Mode,
		VariantIndex: call.VariantIndex,
		Attempts:     call.Attempts,
		Prompt:       call.Prompt,
		Response:     call.Response,
		Success:      call.Err == nil,
		LatencyMS:    call.Latency.Milliseconds(),
	}
	if call.Err != nil {
		row.Error = call.Err.Error()
	}
	// The request context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	if _, err := r.calls.Create(ctx, nil, []*types.AICallLog{row}); err != nil {
		r.log.Warn("record ai call failed", "error", err, "provider", call.Provider)
	}
}

// Recorders fans each call out to every recorder in order.
type Recorders []CallRecorder

func (rs Recorders) Record(ctx context.Context, call Call) {
	for _, r := range rs {
		if r != nil {
			r.Record(ctx, call)
		}
	}
}

// RecorderFunc adapts a function, e.g. a metrics hook, to CallRecorder.
type RecorderFunc func(ctx context.Context, call Call)

func (f RecorderFunc) Record(ctx context.Context, call Call) { f(ctx, call) }
