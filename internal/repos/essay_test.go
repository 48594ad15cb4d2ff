package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/essayfeed-backend/internal/repos/testutil"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

func seedEssay(t *testing.T, repo EssayRepo) *types.Essay {
	t.Helper()
	e := &types.Essay{Title: "On rivers", Question: "Discuss X", Content: "Rivers flow."}
	if _, err := repo.Create(context.Background(), nil, []*types.Essay{e}); err != nil {
		t.Fatalf("Create essay: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatalf("expected BeforeCreate to assign an id")
	}
	return e
}

func TestEssayRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewEssayRepo(db, testutil.Logger(t))

	e := seedEssay(t, repo)

	got, err := repo.GetByID(ctx, nil, e.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Question != "Discuss X" {
		t.Fatalf("GetByID: question=%q", got.Question)
	}

	if got, err := repo.GetByID(ctx, nil, uuid.New()); err != nil || got != nil {
		t.Fatalf("GetByID(missing): got=%v err=%v", got, err)
	}

	if got, err := repo.Find(ctx, nil, e.ID, Filters{"title": "other"}); err != nil || got != nil {
		t.Fatalf("Find(mismatch): got=%v err=%v", got, err)
	}
	if got, err := repo.Find(ctx, nil, e.ID, Filters{"uuid": e.ID.String()}); err != nil || got == nil {
		t.Fatalf("Find(uuid): got=%v err=%v", got, err)
	}

	_, err = repo.Find(ctx, nil, e.ID, Filters{"content; DROP TABLE essay": "x"})
	var unknown *UnknownFilterError
	if !errors.As(err, &unknown) {
		t.Fatalf("Find(bad filter): expected UnknownFilterError, got %v", err)
	}

	list, err := repo.List(ctx, nil, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: len=%d err=%v", len(list), err)
	}
}

func TestSegmentRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	essay := seedEssay(t, NewEssayRepo(db, log))
	repo := NewSegmentRepo(db, log)

	segs := []*types.Segment{
		{EssayID: essay.ID, Title: "Conclusion", Type: "conclusion", Order: 2, Content: "c"},
		{EssayID: essay.ID, Title: "Introduction", Type: "introduction", Order: 1, Content: "i"},
	}
	if _, err := repo.Create(ctx, nil, segs); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := repo.ListByEssayID(ctx, nil, essay.ID, nil)
	if err != nil {
		t.Fatalf("ListByEssayID: %v", err)
	}
	if len(all) != 2 || all[0].Type != "introduction" || all[1].Type != "conclusion" {
		t.Fatalf("ListByEssayID: unexpected order %+v", all)
	}

	intro, err := repo.ListByEssayID(ctx, nil, essay.ID, Filters{"type": "introduction"})
	if err != nil || len(intro) != 1 {
		t.Fatalf("ListByEssayID(type): len=%d err=%v", len(intro), err)
	}

	byOrder, err := repo.ListByEssayID(ctx, nil, essay.ID, Filters{"order": "2"})
	if err != nil || len(byOrder) != 1 || byOrder[0].Title != "Conclusion" {
		t.Fatalf("ListByEssayID(order): %+v err=%v", byOrder, err)
	}

	n, err := repo.CountByEssayID(ctx, nil, essay.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountByEssayID: n=%d err=%v", n, err)
	}

	dup := []*types.Segment{{EssayID: essay.ID, Title: "Again", Order: 1}}
	if _, err := repo.Create(ctx, nil, dup); err == nil {
		t.Fatalf("Create: expected unique (essay_id, order) violation")
	}

	got, err := repo.GetByID(ctx, nil, segs[0].ID)
	if err != nil || got == nil || got.Title != "Conclusion" {
		t.Fatalf("GetByID: %+v err=%v", got, err)
	}
}
