package pkg

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

// InitDatabase opens the Postgres connection and tunes the pool.
func InitDatabase(databaseURL string, production bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if !production {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		// TranslateError maps pq unique violations to gorm.ErrDuplicatedKey,
		// which the attempt start path relies on to detect races.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// MigrateDatabase runs schema migrations for all service models.
func MigrateDatabase(db *gorm.DB, logger *slog.Logger) error {
	logger.Info("running database migrations")

	if err := db.AutoMigrate(
		&models.User{},
		&models.PracticeTest{},
		&models.TestAttempt{},
		&models.Batch{},
		&models.BatchMembership{},
		&models.BatchAssignedTest{},
		&models.SecurityViolation{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	// One in-progress attempt per user per test. A partial unique index makes
	// the constraint race-free; concurrent starts surface as duplicate keys
	// and the loser resumes the winner's attempt.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempt_in_progress
		 ON test_attempts (user_id, practice_test_id)
		 WHERE status = 'in_progress'`,
	).Error; err != nil {
		return fmt.Errorf("failed to create in-progress attempt index: %w", err)
	}

	logger.Info("database migrations completed")
	return nil
}
