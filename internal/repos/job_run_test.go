package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now()
	feedID := uuid.New()

	queued := &types.JobRun{
		JobType:   types.JobTypeFeedRun,
		FeedID:    feedID,
		EssayID:   uuid.New(),
		Status:    types.JobStatusQueued,
		CreatedAt: now.Add(-3 * time.Hour),
		UpdatedAt: now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		JobType:     types.JobTypeFeedRun,
		FeedID:      feedID,
		EssayID:     uuid.New(),
		Status:      types.JobStatusFailed,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	exhausted := &types.JobRun{
		JobType:     types.JobTypeFeedRun,
		FeedID:      feedID,
		EssayID:     uuid.New(),
		Status:      types.JobStatusFailed,
		Attempts:    5,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		CreatedAt:   now.Add(-90 * time.Minute),
		UpdatedAt:   now.Add(-90 * time.Minute),
	}
	staleRunning := &types.JobRun{
		JobType:     types.JobTypeFeedRun,
		FeedID:      feedID,
		EssayID:     uuid.New(),
		Status:      types.JobStatusRunning,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}

	if _, err := repo.Create(ctx, nil, []*types.JobRun{queued, failed, exhausted, staleRunning}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}
	for i, id := range want {
		job, err := repo.ClaimNextRunnable(ctx, nil, 3, time.Minute, 30*time.Minute)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i, err)
		}
		if job == nil || job.ID != id {
			t.Fatalf("ClaimNextRunnable #%d: expected %s, got %+v", i, id, job)
		}
		if job.Status != types.JobStatusRunning || job.Attempts < 1 {
			t.Fatalf("ClaimNextRunnable #%d: status=%s attempts=%d", i, job.Status, job.Attempts)
		}
	}
	if job, err := repo.ClaimNextRunnable(ctx, nil, 3, time.Minute, 30*time.Minute); err != nil || job != nil {
		t.Fatalf("ClaimNextRunnable(empty): job=%+v err=%v", job, err)
	}

	if err := repo.UpdateFields(ctx, nil, queued.ID, map[string]interface{}{"stage": "step:scoring", "progress": 50}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := repo.Heartbeat(ctx, nil, queued.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	got, err := repo.GetByID(ctx, nil, queued.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Stage != "step:scoring" || got.Progress != 50 || got.HeartbeatAt == nil {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}
	if got.Channel() != "job:"+queued.ID.String() {
		t.Fatalf("Channel: %s", got.Channel())
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
