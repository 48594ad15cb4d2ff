package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/http/response"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/orchestrator"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/platform/apierr"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/realtime"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type FeedRunner interface {
	Load(ctx context.Context, feedID uuid.UUID) (*feed.Feed, error)
	RunByID(ctx context.Context, feedID uuid.UUID, ref feed.EssayRef, s sink.Sink) (*orchestrator.Result, error)
	Preview(ctx context.Context, f *feed.Feed, ref feed.EssayRef) ([]orchestrator.StepPreview, error)
}

type FeedHandlerDeps struct {
	Log    *logger.Logger
	Runner FeedRunner
	Essays repos.EssayRepo
	Jobs   repos.JobRunRepo
}

type FeedHandler struct {
	log    *logger.Logger
	runner FeedRunner
	essays repos.EssayRepo
	jobs   repos.JobRunRepo
}

func NewFeedHandlerWithDeps(deps FeedHandlerDeps) *FeedHandler {
	return &FeedHandler{
		log:    deps.Log.With("handler", "FeedHandler"),
		runner: deps.Runner,
		essays: deps.Essays,
		jobs:   deps.Jobs,
	}
}

type runFeedRequest struct {
	EssayID   string `json:"essay_id" binding:"required"`
	SegmentID string `json:"segment_id"`
}

// bindRun parses the feed id and body and checks the essay exists.
func (h *FeedHandler) bindRun(c *gin.Context) (uuid.UUID, feed.EssayRef, error) {
	var ref feed.EssayRef
	feedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, ref, apierr.BadRequest("invalid_feed_id", err)
	}
	var req runFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return uuid.Nil, ref, apierr.BadRequest("invalid_request", err)
	}
	ref.EssayID, err = uuid.Parse(req.EssayID)
	if err != nil {
		return uuid.Nil, ref, apierr.BadRequest("invalid_essay_id", err)
	}
	if req.SegmentID != "" {
		segID, err := uuid.Parse(req.SegmentID)
		if err != nil {
			return uuid.Nil, ref, apierr.BadRequest("invalid_segment_id", err)
		}
		ref.SegmentID = &segID
	}
	essay, err := h.essays.GetByID(c.Request.Context(), nil, ref.EssayID)
	if err != nil {
		return uuid.Nil, ref, err
	}
	if essay == nil {
		return uuid.Nil, ref, apierr.NotFound("essay_not_found", fmt.Errorf("essay %s not found", ref.EssayID))
	}
	return feedID, ref, nil
}

// POST /api/feeds/:id/run
//
// Streams the run's events as SSE frames on the response. Failures after the stream opens arrive
// as a feed_error event, not an HTTP status.
func (h *FeedHandler) RunFeed(c *gin.Context) {
	feedID, ref, err := h.bindRun(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if _, err := h.runner.Load(c.Request.Context(), feedID); err != nil {
		response.RespondAPIError(c, classifyFeedErr(err))
		return
	}

	realtime.SetStreamHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	if _, err := h.runner.RunByID(c.Request.Context(), feedID, ref, sink.NewSSEWriter(c.Writer)); err != nil {
		h.log.Warn("streamed feed run failed", "feed_id", feedID, "essay_id", ref.EssayID, "error", err)
	}
}

// POST /api/feeds/:id/jobs
func (h *FeedHandler) EnqueueFeed(c *gin.Context) {
	feedID, ref, err := h.bindRun(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if _, err := h.runner.Load(c.Request.Context(), feedID); err != nil {
		response.RespondAPIError(c, classifyFeedErr(err))
		return
	}
	job := &types.JobRun{
		JobType:   types.JobTypeFeedRun,
		FeedID:    feedID,
		EssayID:   ref.EssayID,
		SegmentID: ref.SegmentID,
		Status:    types.JobStatusQueued,
		Stage:     "queued",
	}
	if _, err := h.jobs.Create(c.Request.Context(), nil, []*types.JobRun{job}); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job, "channel": job.Channel()})
}

// POST /api/feeds/:id/preview
func (h *FeedHandler) PreviewFeed(c *gin.Context) {
	feedID, ref, err := h.bindRun(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	f, err := h.runner.Load(c.Request.Context(), feedID)
	if err != nil {
		response.RespondAPIError(c, classifyFeedErr(err))
		return
	}
	steps, err := h.runner.Preview(c.Request.Context(), f, ref)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"feed_id": feedID, "steps": steps})
}

func classifyFeedErr(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrFeedNotFound):
		return apierr.NotFound("feed_not_found", err)
	case errors.Is(err, orchestrator.ErrFeedDisabled):
		return apierr.Conflict("feed_disabled", err)
	case errors.Is(err, feed.ErrInvalidStep):
		return apierr.Unprocessable("invalid_feed", err)
	}
	return err
}
