package repos

import (
	"context"
	"testing"

	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

func TestEssayFeedbackFillColumnIfEmpty(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	essay := seedEssay(t, NewEssayRepo(db, log))
	repo := NewEssayFeedbackRepo(db, log)

	row := &types.EssayFeedback{EssayID: essay.ID, Criteria: "clarity", Score: "4"}
	if _, err := repo.Create(ctx, nil, []*types.EssayFeedback{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	filled, err := repo.FillColumnIfEmpty(ctx, nil, row.ID, types.FeedbackColumnFeedback, "Good work")
	if err != nil || !filled {
		t.Fatalf("FillColumnIfEmpty(empty): filled=%v err=%v", filled, err)
	}
	filled, err = repo.FillColumnIfEmpty(ctx, nil, row.ID, types.FeedbackColumnFeedback, "Overwrite")
	if err != nil || filled {
		t.Fatalf("FillColumnIfEmpty(populated): filled=%v err=%v", filled, err)
	}
	filled, err = repo.FillColumnIfEmpty(ctx, nil, row.ID, types.FeedbackColumnScore, "1")
	if err != nil || filled {
		t.Fatalf("FillColumnIfEmpty(score): filled=%v err=%v", filled, err)
	}
	if _, err := repo.FillColumnIfEmpty(ctx, nil, row.ID, "criteria", "x"); err == nil {
		t.Fatalf("FillColumnIfEmpty: expected error for non-content column")
	}

	got, err := repo.GetBySubjectCriteria(ctx, nil, essay.ID, "clarity")
	if err != nil || got == nil {
		t.Fatalf("GetBySubjectCriteria: got=%v err=%v", got, err)
	}
	if got.Feedback != "Good work" || got.Score != "4" {
		t.Fatalf("unexpected row: feedback=%q score=%q", got.Feedback, got.Score)
	}

	if got, err := repo.GetBySubjectCriteria(ctx, nil, essay.ID, "other"); err != nil || got != nil {
		t.Fatalf("GetBySubjectCriteria(missing): got=%v err=%v", got, err)
	}

	dup := &types.EssayFeedback{EssayID: essay.ID, Criteria: "clarity"}
	if _, err := repo.Create(ctx, nil, []*types.EssayFeedback{dup}); err == nil {
		t.Fatalf("Create: expected unique (essay_id, criteria) violation")
	}
}

func TestSegmentFeedbackListByEssayID(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	essay := seedEssay(t, NewEssayRepo(db, log))
	other := seedEssay(t, NewEssayRepo(db, log))
	segRepo := NewSegmentRepo(db, log)
	repo := NewSegmentFeedbackRepo(db, log)

	segs := []*types.Segment{
		{EssayID: essay.ID, Title: "Main Point 1", Type: "main-point", Order: 2},
		{EssayID: essay.ID, Title: "Introduction", Type: "introduction", Order: 1},
		{EssayID: other.ID, Title: "Introduction", Type: "introduction", Order: 1},
	}
	if _, err := segRepo.Create(ctx, nil, segs); err != nil {
		t.Fatalf("Create segments: %v", err)
	}
	rows := []*types.SegmentFeedback{
		{SegmentID: segs[0].ID, Criteria: "clarity", Feedback: "main"},
		{SegmentID: segs[1].ID, Criteria: "clarity", Feedback: "intro"},
		{SegmentID: segs[2].ID, Criteria: "clarity", Feedback: "foreign"},
	}
	if _, err := repo.Create(ctx, nil, rows); err != nil {
		t.Fatalf("Create feedback: %v", err)
	}

	got, err := repo.ListByEssayID(ctx, nil, essay.ID, Filters{"criteria": "clarity"})
	if err != nil {
		t.Fatalf("ListByEssayID: %v", err)
	}
	if len(got) != 2 || got[0].Feedback != "intro" || got[1].Feedback != "main" {
		t.Fatalf("ListByEssayID: unexpected rows %+v", got)
	}

	typed, err := repo.ListByEssayID(ctx, nil, essay.ID, Filters{"segment_type": "main-point"})
	if err != nil || len(typed) != 1 || typed[0].Feedback != "main" {
		t.Fatalf("ListByEssayID(segment_type): %+v err=%v", typed, err)
	}

	one, err := repo.GetBySubjectCriteria(ctx, nil, segs[1].ID, "clarity")
	if err != nil || one == nil || one.Feedback != "intro" {
		t.Fatalf("GetBySubjectCriteria: %+v err=%v", one, err)
	}
	filled, err := repo.FillColumnIfEmpty(ctx, nil, one.ID, types.FeedbackColumnCoT, "thinking")
	if err != nil || !filled {
		t.Fatalf("FillColumnIfEmpty: filled=%v err=%v", filled, err)
	}
}
