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

type attemptService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	validator    *validator.Validator
	access       AccessService
	cacheManager *cache.CacheManager
	publisher    events.Publisher
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	access AccessService,
	cacheManager *cache.CacheManager,
	publisher events.Publisher,
) AttemptService {
	return &attemptService{
		repo:         repo,
		db:           db,
		logger:       logger,
		validator:    validator,
		access:       access,
		cacheManager: cacheManager,
		publisher:    publisher,
	}
}

// ===== START / RESUME =====

func (s *attemptService) Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error) {
	s.logger.Info("Starting practice test attempt",
		"practice_test_id", testID,
		"user_id", userID)

	// Violation block gates everything else.
	blocked, remaining, err := s.cacheManager.GetViolationBlock(ctx, userID)
	if err != nil {
		s.logger.Warn("Violation block check failed, allowing start", "user_id", userID, "error", err)
	}
	if blocked {
		return nil, &ViolationBlockError{UserID: userID, BlockedUntil: time.Now().Add(remaining)}
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	if !test.IsActive {
		return nil, ErrTestNotActive
	}
	if len(test.Questions) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	if !user.IsPrivileged() {
		canAccess, err := s.access.CanAccess(ctx, userID, testID)
		if err != nil {
			return nil, err
		}
		if !canAccess {
			return nil, NewPermissionError(userID, testID, "practice_test", "start", "test not assigned to user")
		}
	}

	now := time.Now()

	// An in-progress attempt is resumed, not restarted; a stale one is
	// reclaimed so the user gets a fresh attempt.
	if active, err := s.repo.Attempt().GetActiveAttempt(ctx, s.db, userID, testID); err == nil && active != nil {
		if active.IsStale(now) {
			if err := s.abandon(ctx, active); err != nil {
				return nil, err
			}
		} else {
			s.logger.Info("Resuming existing attempt", "attempt_id", active.ID, "user_id", userID)
			return toAttemptResponse(active, test, true, now), nil
		}
	} else if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}

	completedCount, err := s.repo.Attempt().CountCompleted(ctx, s.db, userID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}

	if completedCount > 0 && !test.AllowRepeat {
		return nil, ErrRepeatNotAllowed
	}

	if completedCount > 0 && test.EnableCooldown {
		last, err := s.repo.Attempt().GetLatestCompleted(ctx, s.db, userID, testID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get latest completed attempt: %w", err)
		}
		if until := cooldownUntil(test, last); !until.IsZero() && now.Before(until) {
			return nil, &CooldownError{PracticeTestID: testID, NextAvailableTime: until}
		}
	}

	totalCount, err := s.repo.Attempt().CountAll(ctx, s.db, userID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	asked := selectQuestionIndices(len(test.Questions), test.EffectiveQuestionsPerTest(), completedCount)
	snapshot := buildSettingsSnapshot(test, asked)

	attempt := &models.TestAttempt{
		UserID:               userID,
		PracticeTestID:       testID,
		TestTitle:            test.Title,
		QuestionsAsked:       datatypes.NewJSONSlice(asked),
		TotalQuestions:       len(asked),
		Status:               models.AttemptInProgress,
		StartedAt:            &now,
		MaxTime:              test.Duration * 60,
		AttemptsCount:        totalCount + 1,
		TestSettingsSnapshot: newSnapshotColumn(snapshot),
	}

	if err := s.repo.Attempt().Create(ctx, s.db, attempt); err != nil {
		// Lost the race against a concurrent start; the partial unique index
		// guarantees exactly one winner, so resume that one.
		if repositories.IsDuplicateKeyError(err) {
			if active, aerr := s.repo.Attempt().GetActiveAttempt(ctx, s.db, userID, testID); aerr == nil && active != nil {
				s.logger.Info("Concurrent start detected, resuming winner", "attempt_id", active.ID)
				return toAttemptResponse(active, test, true, now), nil
			}
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.publish(events.AttemptStarted, map[string]interface{}{
		"attempt_id":       attempt.ID,
		"practice_test_id": testID,
		"user_id":          userID,
		"attempt_number":   attempt.AttemptsCount,
	})

	s.logger.Info("Practice test attempt started",
		"attempt_id", attempt.ID,
		"practice_test_id", testID,
		"user_id", userID,
		"questions_asked", len(asked))

	return toAttemptResponse(attempt, test, false, now), nil
}

// ===== READ =====

func (s *attemptService) GetActive(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.getReadableAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, attempt.PracticeTestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	return toAttemptResponse(attempt, test, true, time.Now()), nil
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*ResultResponse, error) {
	attempt, err := s.getReadableAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	// Answer review needs the live question text; the result still renders
	// without it when the test was deleted.
	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, attempt.PracticeTestID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get practice test: %w", err)
		}
		test = nil
	}

	return toResultResponse(attempt, test), nil
}

func (s *attemptService) List(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*AttemptSummary, int64, error) {
	// Users only ever see their own history through this path.
	filters.UserID = &userID
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.SortBy == "" {
		filters.SortBy = "created_at"
		filters.SortOrder = "desc"
	}

	attempts, total, err := s.repo.Attempt().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	summaries := make([]*AttemptSummary, len(attempts))
	for i, attempt := range attempts {
		summaries[i] = toAttemptSummary(attempt)
	}

	return summaries, total, nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, attemptID uint, userID string, req *validator.SubmitAttemptRequest) (*ResultResponse, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "user_id", userID)

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID, "submit")
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadySubmitted
	}

	if errs := s.validator.ValidateSubmission(req, attempt.TotalQuestions); errs.HasErrors() {
		return nil, errs
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, attempt.PracticeTestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get practice test: %w", err)
	}

	result := scoreAttempt(attempt, test, req.Answers)

	// Time taken is measured server-side; the client never reports it.
	now := time.Now()
	timeTaken := 0
	if attempt.StartedAt != nil {
		timeTaken = int(now.Sub(*attempt.StartedAt).Seconds())
	}

	attempt.Answers = datatypes.NewJSONSlice(result.Answers)
	attempt.Score = result.Score
	attempt.ObtainedMarks = result.ObtainedMarks
	attempt.CorrectAnswers = result.CorrectAnswers
	attempt.WrongAnswers = result.WrongAnswers
	attempt.Passed = result.Passed
	attempt.TimeTaken = timeTaken
	attempt.CompletedAt = &now
	attempt.Status = models.AttemptCompleted

	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("failed to save attempt result: %w", err)
	}

	s.publish(events.AttemptCompleted, map[string]interface{}{
		"attempt_id":       attempt.ID,
		"practice_test_id": attempt.PracticeTestID,
		"user_id":          userID,
		"score":            result.Score,
		"passed":           result.Passed,
	})

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"user_id", userID,
		"score", result.Score,
		"passed", result.Passed)

	return toResultResponse(attempt, test), nil
}

// ===== DELETE =====

// Delete removes an attempt from the user's history, whatever its status.
// Deleting an in-progress attempt frees the slot for a fresh start.
func (s *attemptService) Delete(ctx context.Context, attemptID uint, userID string) error {
	if _, err := s.getOwnedAttempt(ctx, attemptID, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Attempt().Delete(ctx, s.db, attemptID); err != nil {
		return fmt.Errorf("failed to delete attempt: %w", err)
	}

	s.logger.Info("Attempt deleted", "attempt_id", attemptID, "user_id", userID)
	return nil
}

// ===== HELPERS =====

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID, action string) (*models.TestAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", action, "not owned by user")
	}

	return attempt, nil
}

// getReadableAttempt is the read-path variant of getOwnedAttempt: admins may
// view any attempt record, mutation stays owner-only.
func (s *attemptService) getReadableAttempt(ctx context.Context, attemptID uint, userID string) (*models.TestAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID == userID {
		return attempt, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err == nil && user.IsPrivileged() {
		return attempt, nil
	}

	return nil, NewPermissionError(userID, attemptID, "attempt", "read", "not owned by user")
}

func (s *attemptService) abandon(ctx context.Context, attempt *models.TestAttempt) error {
	now := time.Now()
	attempt.Status = models.AttemptAbandoned
	attempt.CompletedAt = &now
	if attempt.StartedAt != nil {
		elapsed := int(now.Sub(*attempt.StartedAt).Seconds())
		if elapsed > attempt.MaxTime {
			elapsed = attempt.MaxTime
		}
		attempt.TimeTaken = elapsed
	}

	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		return fmt.Errorf("failed to abandon attempt: %w", err)
	}

	s.publish(events.AttemptAbandoned, map[string]interface{}{
		"attempt_id":       attempt.ID,
		"practice_test_id": attempt.PracticeTestID,
		"user_id":          attempt.UserID,
	})

	return nil
}

func (s *attemptService) publish(eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(events.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
