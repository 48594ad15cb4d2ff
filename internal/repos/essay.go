package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var essayFilterColumns = map[string]filterColumn{
	"id":     col("essay.id"),
	"uuid":   col("essay.id"),
	"status": col("essay.status"),
	"title":  col("essay.title"),
}

type EssayRepo interface {
	Create(ctx context.Context, tx *gorm.DB, essays []*types.Essay) ([]*types.Essay, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Essay, error)
	// Find returns the essay only if it also matches filters.
	Find(ctx context.Context, tx *gorm.DB, id uuid.UUID, filters Filters) (*types.Essay, error)
	List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Essay, error)
}

type essayRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEssayRepo(db *gorm.DB, baseLog *logger.Logger) EssayRepo {
	return &essayRepo{db: db, log: baseLog.With("repo", "EssayRepo")}
}

func (r *essayRepo) Create(ctx context.Context, tx *gorm.DB, essays []*types.Essay) ([]*types.Essay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(essays) == 0 {
		return []*types.Essay{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&essays).Error; err != nil {
		return nil, err
	}
	return essays, nil
}

func (r *essayRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Essay, error) {
	return r.Find(ctx, tx, id, nil)
}

func (r *essayRepo) Find(ctx context.Context, tx *gorm.DB, id uuid.UUID, filters Filters) (*types.Essay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	q, err := applyFilters(transaction.WithContext(ctx).Where("essay.id = ?", id), "essay", essayFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	var out []*types.Essay
	if err := q.Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *essayRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Essay, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Essay
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
