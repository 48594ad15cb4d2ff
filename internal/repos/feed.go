package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type FeedRepo interface {
	Create(ctx context.Context, tx *gorm.DB, feeds []*types.Feed) ([]*types.Feed, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Feed, error)
	ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.Feed, error)
}

type feedRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedRepo(db *gorm.DB, baseLog *logger.Logger) FeedRepo {
	return &feedRepo{db: db, log: baseLog.With("repo", "FeedRepo")}
}

func (r *feedRepo) Create(ctx context.Context, tx *gorm.DB, feeds []*types.Feed) ([]*types.Feed, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(feeds) == 0 {
		return []*types.Feed{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

func (r *feedRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Feed, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Feed
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *feedRepo) ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.Feed, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Feed
	if err := transaction.WithContext(ctx).
		Where("enabled = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
