package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"gorm.io/gorm"
)

// Repository aggregates all entity repositories behind one handle.
type Repository interface {
	PracticeTest() PracticeTestRepository
	Attempt() AttemptRepository
	Batch() BatchRepository
	Violation() ViolationRepository
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type PracticeTestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeTest, error)
	Update(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters PracticeTestFilters) ([]*models.PracticeTest, int64, error)
	GetAssignedToBatches(ctx context.Context, tx *gorm.DB, batchIDs []uint) ([]*models.PracticeTest, error)
	GetPublicForUserType(ctx context.Context, tx *gorm.DB, userType models.UserType) ([]*models.PracticeTest, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.TestAttempt, int64, error)

	GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error)
	GetLatestCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error)
	CountCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error)
	CountAll(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error)
	GetLastAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error)

	// Sweep support
	GetStaleInProgress(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) ([]*models.TestAttempt, error)
	GetPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time, grace time.Duration, limit int) ([]*models.TestAttempt, error)

	// Admin resets
	DeleteByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int64, error)

	GetStats(ctx context.Context, tx *gorm.DB, testID uint) (*AttemptStats, error)
}

type BatchRepository interface {
	GetActiveBatchIDsForUser(ctx context.Context, tx *gorm.DB, userID string) ([]uint, error)
	HasActiveAssignment(ctx context.Context, tx *gorm.DB, batchIDs []uint, testID uint) (bool, error)
	CreateAssignment(ctx context.Context, tx *gorm.DB, assignment *models.BatchAssignedTest) error
	DeleteAssignment(ctx context.Context, tx *gorm.DB, batchID, testID uint) error
	GetAssignmentsForTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.BatchAssignedTest, error)
}

type ViolationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, violation *models.SecurityViolation) error
	CountSwitchViolations(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.SecurityViolation, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ===== SHARED ERROR HELPERS =====

// IsNotFoundError reports whether err is the storage layer's record-missing
// error, so services can translate it without importing gorm.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError reports unique-constraint violations. The start-attempt
// path relies on this to turn the in_progress partial index race into a
// resume response.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
