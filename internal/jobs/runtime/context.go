package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

const (
	EventJobProgress = "job_progress"
	EventJobFailed   = "job_failed"
	EventJobDone     = "job_done"
)

// Context is what a handler gets for one claimed job run. Status changes are written to the
// job_run row and mirrored to Sink, which publishes on the job's channel.
type Context struct {
	Ctx  context.Context
	Job  *types.JobRun
	Repo repos.JobRunRepo
	Sink sink.Sink

	log         *logger.Logger
	maxAttempts int
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, s sink.Sink, maxAttempts int, log *logger.Logger) *Context {
	if s == nil {
		s = sink.Discard
	}
	return &Context{
		Ctx:         ctx,
		Job:         job,
		Repo:        repo,
		Sink:        s,
		log:         log.With("job_id", job.ID, "job_type", job.JobType),
		maxAttempts: maxAttempts,
	}
}

// EssayRef is the essay (and optional segment) the job targets.
func (c *Context) EssayRef() feed.EssayRef {
	return feed.EssayRef{EssayID: c.Job.EssayID, SegmentID: c.Job.SegmentID}
}

func (c *Context) Log() *logger.Logger { return c.log }

func (c *Context) update(fields map[string]interface{}) bool {
	if c.Repo == nil || c.Job.ID == uuid.Nil {
		return true
	}
	// Terminal writes must land even when the run's context was cancelled.
	ctx := context.WithoutCancel(c.context())
	if err := c.Repo.UpdateFields(ctx, nil, c.Job.ID, fields); err != nil {
		c.log.Warn("job update failed", "error", err)
		return false
	}
	return true
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Progress records the current stage. pct is clamped to 0..100.
func (c *Context) Progress(stage string, pct int, msg string) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	now := time.Now()
	c.update(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
	})
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now

	c.Sink.Emit(EventJobProgress, c.summary(), false)
}

// Fail marks the run failed. A failure that is not retryable exhausts the remaining attempts so the
// worker never claims it again.
func (c *Context) Fail(stage string, err error, retryable bool) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	now := time.Now()
	fields := map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
	}
	if !retryable && c.maxAttempts > c.Job.Attempts {
		fields["attempts"] = c.maxAttempts
		c.Job.Attempts = c.maxAttempts
	}
	if !c.update(fields) {
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil

	c.log.Warn("job failed", "stage", stage, "attempts", c.Job.Attempts, "retryable", retryable, "error", msg)
	payload := c.summary()
	payload["retryable"] = retryable && c.Job.Attempts < c.maxAttempts
	c.Sink.Emit(EventJobFailed, payload, true)
}

// Succeed stores result as JSON and marks the run done.
func (c *Context) Succeed(stage string, result any) {
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(stage, err, false)
			return
		}
		res = datatypes.JSON(b)
	}
	now := time.Now()
	if !c.update(map[string]interface{}{
		"status":       types.JobStatusSucceeded,
		"stage":        stage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
	}) {
		return
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = stage
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now

	c.Sink.Emit(EventJobDone, c.summary(), false)
}

func (c *Context) summary() map[string]any {
	out := map[string]any{
		"job_id":   c.Job.ID.String(),
		"job_type": c.Job.JobType,
		"status":   c.Job.Status,
		"stage":    c.Job.Stage,
		"progress": c.Job.Progress,
		"attempts": c.Job.Attempts,
		"feed_id":  c.Job.FeedID.String(),
		"essay_id": c.Job.EssayID.String(),
	}
	if c.Job.Message != "" {
		out["message"] = c.Job.Message
	}
	if c.Job.Error != "" {
		out["error"] = c.Job.Error
	}
	return out
}
