package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var essayFeedbackFilterColumns = map[string]filterColumn{
	"id":       col("essay_feedback.id"),
	"uuid":     col("essay_feedback.essay_id"),
	"essay_id": col("essay_feedback.essay_id"),
	"criteria": col("essay_feedback.criteria"),
	"source":   col("essay_feedback.source"),
}

type EssayFeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.EssayFeedback) ([]*types.EssayFeedback, error)
	GetBySubjectCriteria(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, criteria string) (*types.EssayFeedback, error)
	ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.EssayFeedback, error)
	FillColumnIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID, column, value string) (bool, error)
}

type essayFeedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEssayFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) EssayFeedbackRepo {
	return &essayFeedbackRepo{db: db, log: baseLog.With("repo", "EssayFeedbackRepo")}
}

func (r *essayFeedbackRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.EssayFeedback) ([]*types.EssayFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.EssayFeedback{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *essayFeedbackRepo) GetBySubjectCriteria(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, criteria string) (*types.EssayFeedback, error) {
	out, err := r.ListByEssayID(ctx, tx, essayID, Filters{"criteria": criteria})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *essayFeedbackRepo) ListByEssayID(ctx context.Context, tx *gorm.DB, essayID uuid.UUID, filters Filters) ([]*types.EssayFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EssayFeedback
	if essayID == uuid.Nil {
		return out, nil
	}
	q, err := applyFilters(transaction.WithContext(ctx).Where("essay_feedback.essay_id = ?", essayID), "essay_feedback", essayFeedbackFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	if err := q.Order("essay_feedback.created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *essayFeedbackRepo) FillColumnIfEmpty(ctx context.Context, tx *gorm.DB, id uuid.UUID, column, value string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return fillColumnIfEmpty(ctx, transaction, &types.EssayFeedback{}, id, column, value)
}
