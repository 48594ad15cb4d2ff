package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/config"
	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
)

func NewSQLiteService(cfg config.DatabaseConfig, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")

	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.SQLitePath
	}
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog(cfg.SlowThreshold.Duration),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %q: %w", dsn, err)
	}
	// SQLite allows one writer at a time.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	serviceLog.Info("Opened SQLite", "dsn", dsn)
	return &Service{db: db, log: serviceLog}, nil
}
