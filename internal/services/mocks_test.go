package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

// MockRepository for testing - minimal implementation backed by in-memory
// fixtures. Tests populate only the sub-repositories they exercise.
type MockRepository struct {
	practiceTest *MockPracticeTestRepository
	attempt      *MockAttemptRepository
	batch        *MockBatchRepository
	violation    *MockViolationRepository
	user         *MockUserRepository
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		practiceTest: &MockPracticeTestRepository{},
		attempt:      &MockAttemptRepository{},
		batch:        &MockBatchRepository{},
		violation:    &MockViolationRepository{},
		user:         &MockUserRepository{},
	}
}

func (m *MockRepository) PracticeTest() repositories.PracticeTestRepository { return m.practiceTest }
func (m *MockRepository) Attempt() repositories.AttemptRepository           { return m.attempt }
func (m *MockRepository) Batch() repositories.BatchRepository               { return m.batch }
func (m *MockRepository) Violation() repositories.ViolationRepository       { return m.violation }
func (m *MockRepository) User() repositories.UserRepository                 { return m.user }
func (m *MockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

type MockPracticeTestRepository struct {
	tests    map[uint]*models.PracticeTest
	assigned []*models.PracticeTest
	public   []*models.PracticeTest
	updated  []*models.PracticeTest
}

func (m *MockPracticeTestRepository) Create(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error {
	return nil
}

func (m *MockPracticeTestRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeTest, error) {
	test, ok := m.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return test, nil
}

func (m *MockPracticeTestRepository) Update(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error {
	m.updated = append(m.updated, test)
	return nil
}

func (m *MockPracticeTestRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return nil
}

func (m *MockPracticeTestRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.PracticeTestFilters) ([]*models.PracticeTest, int64, error) {
	return nil, 0, nil
}

func (m *MockPracticeTestRepository) GetAssignedToBatches(ctx context.Context, tx *gorm.DB, batchIDs []uint) ([]*models.PracticeTest, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	return m.assigned, nil
}

func (m *MockPracticeTestRepository) GetPublicForUserType(ctx context.Context, tx *gorm.DB, userType models.UserType) ([]*models.PracticeTest, error) {
	out := make([]*models.PracticeTest, 0, len(m.public))
	for _, test := range m.public {
		if test.ShowInPublic && test.IsActive && test.TargetUserType == userType {
			out = append(out, test)
		}
	}
	return out, nil
}

type MockAttemptRepository struct {
	attempts     map[uint]*models.TestAttempt
	pastDeadline []*models.TestAttempt
	stale        []*models.TestAttempt
	updated      []*models.TestAttempt
	deleted      []uint
}

func (m *MockAttemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	return nil
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	attempt, ok := m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return attempt, nil
}

func (m *MockAttemptRepository) Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	m.updated = append(m.updated, attempt)
	return nil
}

func (m *MockAttemptRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *MockAttemptRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	return nil, 0, nil
}

func (m *MockAttemptRepository) GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockAttemptRepository) GetLatestCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockAttemptRepository) CountCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error) {
	return 0, nil
}

func (m *MockAttemptRepository) CountAll(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error) {
	return 0, nil
}

func (m *MockAttemptRepository) GetLastAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *MockAttemptRepository) GetStaleInProgress(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) ([]*models.TestAttempt, error) {
	return m.stale, nil
}

func (m *MockAttemptRepository) GetPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time, grace time.Duration, limit int) ([]*models.TestAttempt, error) {
	return m.pastDeadline, nil
}

func (m *MockAttemptRepository) DeleteByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int64, error) {
	return 0, nil
}

func (m *MockAttemptRepository) GetStats(ctx context.Context, tx *gorm.DB, testID uint) (*repositories.AttemptStats, error) {
	return &repositories.AttemptStats{}, nil
}

type MockBatchRepository struct {
	batchIDs []uint
	assigned map[uint]bool
}

func (m *MockBatchRepository) GetActiveBatchIDsForUser(ctx context.Context, tx *gorm.DB, userID string) ([]uint, error) {
	return m.batchIDs, nil
}

func (m *MockBatchRepository) HasActiveAssignment(ctx context.Context, tx *gorm.DB, batchIDs []uint, testID uint) (bool, error) {
	if len(batchIDs) == 0 {
		return false, nil
	}
	return m.assigned[testID], nil
}

func (m *MockBatchRepository) CreateAssignment(ctx context.Context, tx *gorm.DB, assignment *models.BatchAssignedTest) error {
	return nil
}

func (m *MockBatchRepository) DeleteAssignment(ctx context.Context, tx *gorm.DB, batchID, testID uint) error {
	return nil
}

func (m *MockBatchRepository) GetAssignmentsForTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.BatchAssignedTest, error) {
	return nil, nil
}

type MockViolationRepository struct {
	violations  []*models.SecurityViolation
	switchCount int
}

func (m *MockViolationRepository) Create(ctx context.Context, tx *gorm.DB, violation *models.SecurityViolation) error {
	m.violations = append(m.violations, violation)
	if violation.Type.CountsTowardTermination() {
		m.switchCount++
	}
	return nil
}

func (m *MockViolationRepository) CountSwitchViolations(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	return m.switchCount, nil
}

func (m *MockViolationRepository) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.SecurityViolation, error) {
	return m.violations, nil
}

type MockUserRepository struct {
	users map[string]*models.User
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}
