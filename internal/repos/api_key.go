package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type APIKeyRepo interface {
	// Upsert stores a sealed key, replacing any existing key for the provider.
	Upsert(ctx context.Context, tx *gorm.DB, key *types.APIKey) error
	GetActiveByProvider(ctx context.Context, tx *gorm.DB, provider string) (*types.APIKey, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, provider string) error
}

type apiKeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAPIKeyRepo(db *gorm.DB, baseLog *logger.Logger) APIKeyRepo {
	return &apiKeyRepo{db: db, log: baseLog.With("repo", "APIKeyRepo")}
}

func (r *apiKeyRepo) Upsert(ctx context.Context, tx *gorm.DB, key *types.APIKey) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "active", "updated_at"}),
		}).
		Create(key).Error
}

func (r *apiKeyRepo) GetActiveByProvider(ctx context.Context, tx *gorm.DB, provider string) (*types.APIKey, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if provider == "" {
		return nil, nil
	}
	var out []*types.APIKey
	if err := transaction.WithContext(ctx).
		Where("provider = ? AND active = ?", provider, true).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// IncrementUsage is a single relative UPDATE; concurrent callers may interleave but never lose the row.
func (r *apiKeyRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, provider string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.APIKey{}).
		Where("provider = ?", provider).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
			"updated_at":   now,
		}).Error
}
