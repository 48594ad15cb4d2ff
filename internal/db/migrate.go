package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/types"
)

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Essay{},
		&types.Segment{},
		&types.EssayFeedback{},
		&types.SegmentFeedback{},
		&types.Feed{},
		&types.APIKey{},
		&types.AICallLog{},
		&types.JobRun{},
	)
}
