package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var segmentFilterColumns = map[string]filterColumn{
	"id":       col("segment.id"),
	"uuid":     col("segment.id"),
	"essay_id": col("segment.essay_id"),
	"title":    col("segment.title"),
	"type":     col("segment.type"),
	"order":    intCol("segment.position"),
	"source":   col("segment.source"),
}

type SegmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, segments []*types.Segment) ([]*types.Segment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Segment, error)
	// ListByEssayID returns the essay's segments in order, narrowed by filters.
	ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.Segment, error)
	CountByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID) (int64, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Segment, error)
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return &segmentRepo{db: db, log: baseLog.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) Create(ctx context.Context, tx *gorm.DB, segments []*types.Segment) ([]*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(segments) == 0 {
		return []*types.Segment{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *segmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Segment, error) {
	out, err := r.ListByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *segmentRepo) ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Segment
	if essayID == uuid.Nil {
		return out, nil
	}
	q, err := applyFilters(transaction.WithContext(ctx).Where("segment.essay_id = ?", essayID), "segment", segmentFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	if err := q.Order("segment.position ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) CountByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(&types.Segment{}).
		Where("essay_id = ?", essayID).
		Count(&n).Error
	return n, err
}

func (r *segmentRepo) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Segment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Segment
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
