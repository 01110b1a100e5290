package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"invoice-dashboard-backend/apperrors"
	"invoice-dashboard-backend/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the relational pool. It is called once at process start; the caller owns the
// returned handle and must Close it at shutdown.
func Connect(cfg config.Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, apperrors.Configuration("relational database is not configured")
	}

	dsn := withConnectTimeout(cfg.DatabaseURL, cfg.DBConnectTimeout)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, apperrors.BackendUnavailable("connect relational database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.BackendUnavailable("relational pool", err)
	}
	// Bounded pool: callers wait for a connection only as long as their query deadline allows.
	sqlDB.SetMaxOpenConns(cfg.DBMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxConns)
	sqlDB.SetConnMaxIdleTime(cfg.DBIdleTimeout)

	slog.Info("relational database connected", "max_conns", cfg.DBMaxConns)
	return db, nil
}

// Close releases the pool.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withConnectTimeout appends connect_timeout to either DSN flavour unless it is already present.
func withConnectTimeout(dsn string, timeout time.Duration) string {
	if timeout <= 0 || strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%sconnect_timeout=%d", dsn, sep, secs)
	}
	return fmt.Sprintf("%s connect_timeout=%d", dsn, secs)
}
