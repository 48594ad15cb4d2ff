package handlers

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/http/response"
	"github.com/yungbote/essayfeed-backend/internal/platform/apierr"
	"github.com/yungbote/essayfeed-backend/internal/repos"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type JobHandler struct {
	jobs repos.JobRunRepo
}

func NewJobHandler(jobs repos.JobRunRepo) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type jobView struct {
	Job       *types.JobRun `json:"job"`
	Channel   string        `json:"channel"`
	EventsURL string        `json:"events_url"`
	Done      bool          `json:"done"`
}

// GetJob reports a queued feed run. Pollers stop once done is true; live progress is on events_url.
//
// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_job_id", err))
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), nil, id)
	switch {
	case err != nil:
		response.RespondAPIError(c, fmt.Errorf("load job %s: %w", id, err))
		return
	case job == nil:
		response.RespondAPIError(c, apierr.NotFound("job_not_found", fmt.Errorf("job %s not found", id)))
		return
	}

	done := job.Status == types.JobStatusSucceeded || job.Status == types.JobStatusFailed
	if !done {
		c.Header("Cache-Control", "no-store")
	}
	response.RespondOK(c, jobView{
		Job:       job,
		Channel:   job.Channel(),
		EventsURL: "/api/events?channel=" + url.QueryEscape(job.Channel()),
		Done:      done,
	})
}
