package feed_run

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/orchestrator"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type Runner interface {
	RunByID(ctx context.Context, feedID uuid.UUID, ref feed.EssayRef, s sink.Sink) (*orchestrator.Result, error)
}

type Pipeline struct {
	runner Runner
	log    *logger.Logger
}

func New(runner Runner, baseLog *logger.Logger) *Pipeline {
	return &Pipeline{
		runner: runner,
		log:    baseLog.With("job", types.JobTypeFeedRun),
	}
}

func (p *Pipeline) Type() string { return types.JobTypeFeedRun }
