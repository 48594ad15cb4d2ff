package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var segmentFeedbackFilterColumns = map[string]filterColumn{
	"id":           col("segment_feedback.id"),
	"segment_id":   col("segment_feedback.segment_id"),
	"criteria":     col("segment_feedback.criteria"),
	"source":       col("segment_feedback.source"),
	"uuid":         col("segment.essay_id"),
	"essay_id":     col("segment.essay_id"),
	"segment_type": col("segment.type"),
}

type SegmentFeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.SegmentFeedback) ([]*types.SegmentFeedback, error)
	GetBySubjectCriteria(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, criteria string) (*types.SegmentFeedback, error)
	// ListByEssayID returns feedback for all of the essay's segments, in segment order.
	ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.SegmentFeedback, error)
	FillColumnIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID, column, value string) (bool, error)
}

type segmentFeedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) SegmentFeedbackRepo {
	return &segmentFeedbackRepo{db: db, log: baseLog.With("repo", "SegmentFeedbackRepo")}
}

func (r *segmentFeedbackRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.SegmentFeedback) ([]*types.SegmentFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.SegmentFeedback{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *segmentFeedbackRepo) GetBySubjectCriteria(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, criteria string) (*types.SegmentFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if segmentID == uuid.Nil {
		return nil, nil
	}
	var out []*types.SegmentFeedback
	if err := transaction.WithContext(ctx).
		Where("segment_id = ? AND criteria = ?", segmentID, criteria).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *segmentFeedbackRepo) ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.SegmentFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SegmentFeedback
	if essayID == uuid.Nil {
		return out, nil
	}
	base := transaction.WithContext(ctx).
		Joins("JOIN segment ON segment.id = segment_feedback.segment_id").
		Where("segment.essay_id = ?", essayID)
	q, err := applyFilters(base, "segment_feedback", segmentFeedbackFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	if err := q.Order("segment.position ASC").Order("segment_feedback.created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentFeedbackRepo) FillColumnIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID, column, value string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return fillColumnIfEmpty(ctx, transaction, &types.SegmentFeedback{}, id, column, value)
}
