package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/cache"
	"github.com/iiftl-portal/practice-test-service/internal/events"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

type practiceTestService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	validator    *validator.Validator
	cacheManager *cache.CacheManager
	publisher    events.Publisher
}

func NewPracticeTestService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheManager *cache.CacheManager,
	publisher events.Publisher,
) PracticeTestService {
	return &practiceTestService{
		repo:         repo,
		db:           db,
		logger:       logger,
		validator:    validator,
		cacheManager: cacheManager,
		publisher:    publisher,
	}
}

// ===== CRUD =====

func (s *practiceTestService) Create(ctx context.Context, req *validator.PracticeTestCreateRequest, creatorID string) (*models.PracticeTest, error) {
	if _, err := s.requirePrivileged(ctx, creatorID, 0, "practice_test", "create"); err != nil {
		return nil, err
	}

	if errs := s.validator.ValidateTestCreate(req); errs.HasErrors() {
		return nil, errs
	}

	test := &models.PracticeTest{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Questions:        datatypes.NewJSONSlice(toModelQuestions(req.Questions)),
		TotalQuestions:   len(req.Questions),
		QuestionsPerTest: req.QuestionsPerTest,
		Duration:         req.Duration,
		PassingScore:     req.PassingScore,
		AllowRepeat:      req.AllowRepeat,
		RepeatAfterHours: req.RepeatAfterHours,
		EnableCooldown:   req.EnableCooldown,
		TargetUserType:   req.TargetUserType,
		IsActive:         true,
		ShowInPublic:     req.ShowInPublic,
		CreatedBy:        creatorID,
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if test.RepeatAfterHours == 0 {
		test.RepeatAfterHours = 24
	}

	if err := s.repo.PracticeTest().Create(ctx, s.db, test); err != nil {
		return nil, fmt.Errorf("failed to create practice test: %w", err)
	}

	s.publish(events.TestCreated, map[string]interface{}{
		"practice_test_id": test.ID,
		"title":            test.Title,
		"created_by":       creatorID,
	})

	s.logger.Info("Practice test created",
		"practice_test_id", test.ID,
		"title", test.Title,
		"questions", test.TotalQuestions,
		"created_by", creatorID)

	return test, nil
}

func (s *practiceTestService) GetByID(ctx context.Context, id uint, userID string) (*models.PracticeTest, error) {
	if _, err := s.requirePrivileged(ctx, userID, id, "practice_test", "read"); err != nil {
		return nil, err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	return test, nil
}

func (s *practiceTestService) Update(ctx context.Context, id uint, req *validator.PracticeTestUpdateRequest, userID string) (*models.PracticeTest, error) {
	if _, err := s.requirePrivileged(ctx, userID, id, "practice_test", "update"); err != nil {
		return nil, err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	if errs := s.validator.ValidateTestUpdate(req, test); errs.HasErrors() {
		return nil, errs
	}

	applyTestUpdate(test, req)

	if err := s.repo.PracticeTest().Update(ctx, s.db, test); err != nil {
		return nil, fmt.Errorf("failed to update practice test: %w", err)
	}

	s.publish(events.TestUpdated, map[string]interface{}{
		"practice_test_id": test.ID,
		"updated_by":       userID,
	})

	s.logger.Info("Practice test updated", "practice_test_id", test.ID, "updated_by", userID)

	return test, nil
}

// Delete soft-deletes the test. Existing attempts keep their snapshots and
// remain readable in user history.
func (s *practiceTestService) Delete(ctx context.Context, id uint, userID string) error {
	if _, err := s.requirePrivileged(ctx, userID, id, "practice_test", "delete"); err != nil {
		return err
	}

	if _, err := s.repo.PracticeTest().GetByID(ctx, s.db, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get practice test: %w", err)
	}

	if err := s.repo.PracticeTest().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete practice test: %w", err)
	}

	s.publish(events.TestDeleted, map[string]interface{}{
		"practice_test_id": id,
		"deleted_by":       userID,
	})

	s.logger.Info("Practice test deleted", "practice_test_id", id, "deleted_by", userID)
	return nil
}

func (s *practiceTestService) List(ctx context.Context, filters repositories.PracticeTestFilters, userID string) ([]*models.PracticeTest, int64, error) {
	if _, err := s.requirePrivileged(ctx, userID, 0, "practice_test", "list"); err != nil {
		return nil, 0, err
	}

	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.SortBy == "" {
		filters.SortBy = "created_at"
		filters.SortOrder = "desc"
	}

	return s.repo.PracticeTest().List(ctx, s.db, filters)
}

// ===== BATCH ASSIGNMENT =====

func (s *practiceTestService) AssignToBatch(ctx context.Context, testID uint, req *validator.AssignBatchRequest, userID string) error {
	if _, err := s.requirePrivileged(ctx, userID, testID, "practice_test", "assign"); err != nil {
		return err
	}

	if err := s.validator.Validate(req); err != nil {
		return err
	}

	if _, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get practice test: %w", err)
	}

	assignment := &models.BatchAssignedTest{
		BatchID:        req.BatchID,
		PracticeTestID: testID,
		DueDate:        req.DueDate,
		Instructions:   req.Instructions,
		AssignedBy:     userID,
		IsActive:       true,
	}

	if err := s.repo.Batch().CreateAssignment(ctx, s.db, assignment); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return ErrBatchAssignmentExists
		}
		return fmt.Errorf("failed to assign test to batch: %w", err)
	}

	s.publish(events.TestAssigned, map[string]interface{}{
		"practice_test_id": testID,
		"batch_id":         req.BatchID,
		"assigned_by":      userID,
	})

	s.logger.Info("Test assigned to batch",
		"practice_test_id", testID,
		"batch_id", req.BatchID,
		"assigned_by", userID)

	return nil
}

func (s *practiceTestService) UnassignFromBatch(ctx context.Context, testID, batchID uint, userID string) error {
	if _, err := s.requirePrivileged(ctx, userID, testID, "practice_test", "unassign"); err != nil {
		return err
	}

	if err := s.repo.Batch().DeleteAssignment(ctx, s.db, batchID, testID); err != nil {
		return fmt.Errorf("failed to unassign test from batch: %w", err)
	}

	s.logger.Info("Test unassigned from batch",
		"practice_test_id", testID,
		"batch_id", batchID,
		"unassigned_by", userID)

	return nil
}

func (s *practiceTestService) GetAssignments(ctx context.Context, testID uint, userID string) ([]*models.BatchAssignedTest, error) {
	if _, err := s.requirePrivileged(ctx, userID, testID, "practice_test", "read_assignments"); err != nil {
		return nil, err
	}

	return s.repo.Batch().GetAssignmentsForTest(ctx, s.db, testID)
}

// ===== STATS AND RESETS =====

func (s *practiceTestService) GetStats(ctx context.Context, testID uint, userID string) (*TestStatsResponse, error) {
	if _, err := s.requirePrivileged(ctx, userID, testID, "practice_test", "view_stats"); err != nil {
		return nil, err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	// Stats aggregate the whole attempts table for the test; cache briefly.
	cacheKey := fmt.Sprintf("test:%d", testID)
	var resp TestStatsResponse
	err = s.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &resp, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		stats, err := s.repo.Attempt().GetStats(ctx, s.db, testID)
		if err != nil {
			return nil, fmt.Errorf("failed to get attempt stats: %w", err)
		}
		return &TestStatsResponse{
			PracticeTestID: testID,
			Title:          test.Title,
			Stats:          *stats,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ResetCooldown backdates the user's latest completed attempt so they can
// retake immediately. History and question rotation are untouched.
func (s *practiceTestService) ResetCooldown(ctx context.Context, testID uint, targetUserID, adminID string) error {
	if _, err := s.requirePrivileged(ctx, adminID, testID, "practice_test", "reset_cooldown"); err != nil {
		return err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get practice test: %w", err)
	}

	last, err := s.repo.Attempt().GetLatestCompleted(ctx, s.db, targetUserID, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get latest completed attempt: %w", err)
	}

	backdated := time.Now().Add(-time.Duration(test.RepeatAfterHours+1) * time.Hour)
	last.CompletedAt = &backdated

	if err := s.repo.Attempt().Update(ctx, s.db, last); err != nil {
		return fmt.Errorf("failed to reset cooldown: %w", err)
	}

	s.logger.Info("Cooldown reset",
		"practice_test_id", testID,
		"target_user_id", targetUserID,
		"admin_id", adminID)

	return nil
}

// ResetUsage deletes every attempt the user has on the test, restarting
// both retake accounting and question rotation from scratch.
func (s *practiceTestService) ResetUsage(ctx context.Context, testID uint, targetUserID, adminID string) error {
	if _, err := s.requirePrivileged(ctx, adminID, testID, "practice_test", "reset_usage"); err != nil {
		return err
	}

	deleted, err := s.repo.Attempt().DeleteByUserAndTest(ctx, s.db, targetUserID, testID)
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	s.logger.Info("Usage reset",
		"practice_test_id", testID,
		"target_user_id", targetUserID,
		"admin_id", adminID,
		"attempts_deleted", deleted)

	return nil
}

// ===== HELPERS =====

func (s *practiceTestService) requirePrivileged(ctx context.Context, userID string, resourceID uint, resource, action string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsPrivileged() {
		return nil, NewPermissionError(userID, resourceID, resource, action, "insufficient role permissions")
	}

	return user, nil
}

func (s *practiceTestService) publish(eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(events.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

func toModelQuestions(reqs []validator.QuestionRequest) []models.Question {
	questions := make([]models.Question, len(reqs))
	for i, q := range reqs {
		questions[i] = models.Question{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Difficulty:    q.Difficulty,
		}
	}
	return questions
}

func applyTestUpdate(test *models.PracticeTest, req *validator.PracticeTestUpdateRequest) {
	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}
	if req.Category != nil {
		test.Category = *req.Category
	}
	if req.Questions != nil {
		test.Questions = datatypes.NewJSONSlice(toModelQuestions(req.Questions))
		test.TotalQuestions = len(req.Questions)
	}
	if req.QuestionsPerTest != nil {
		test.QuestionsPerTest = *req.QuestionsPerTest
	}
	if req.Duration != nil {
		test.Duration = *req.Duration
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.AllowRepeat != nil {
		test.AllowRepeat = *req.AllowRepeat
	}
	if req.RepeatAfterHours != nil {
		test.RepeatAfterHours = *req.RepeatAfterHours
	}
	if req.EnableCooldown != nil {
		test.EnableCooldown = *req.EnableCooldown
	}
	if req.TargetUserType != nil {
		test.TargetUserType = *req.TargetUserType
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if req.ShowInPublic != nil {
		test.ShowInPublic = *req.ShowInPublic
	}
}
