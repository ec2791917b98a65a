package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/cache"
	"github.com/iiftl-portal/practice-test-service/internal/events"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

type violationService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	validator    *validator.Validator
	cacheManager *cache.CacheManager
	publisher    events.Publisher
}

func NewViolationService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	cacheManager *cache.CacheManager,
	publisher events.Publisher,
) ViolationService {
	return &violationService{
		repo:         repo,
		db:           db,
		logger:       logger,
		validator:    validator,
		cacheManager: cacheManager,
		publisher:    publisher,
	}
}

// Report records a proctoring event against an in-progress attempt. The
// third tab or window switch terminates the attempt and blocks the user
// from starting anything new for 24 hours.
func (s *violationService) Report(ctx context.Context, attemptID uint, userID string, req *validator.ViolationReportRequest) (*ViolationResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "report_violation", "not owned by user")
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	violation := &models.SecurityViolation{
		TestAttemptID: attemptID,
		UserID:        userID,
		Type:          req.Type,
		Details:       req.Details,
	}
	if err := s.repo.Violation().Create(ctx, s.db, violation); err != nil {
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}

	s.publish(events.ViolationReported, map[string]interface{}{
		"attempt_id": attemptID,
		"user_id":    userID,
		"type":       req.Type,
	})

	count, err := s.repo.Violation().CountSwitchViolations(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}

	resp := &ViolationResponse{
		ViolationCount:      count,
		RemainingViolations: models.MaxSwitchViolations - count,
	}
	if resp.RemainingViolations < 0 {
		resp.RemainingViolations = 0
	}

	if !req.Type.CountsTowardTermination() || count < models.MaxSwitchViolations {
		s.logger.Info("Violation recorded",
			"attempt_id", attemptID,
			"user_id", userID,
			"type", req.Type,
			"switch_count", count)
		return resp, nil
	}

	// Third strike: terminate the attempt and block the user.
	if err := s.terminate(ctx, attempt); err != nil {
		return nil, err
	}
	resp.Terminated = true

	if err := s.cacheManager.SetViolationBlock(ctx, userID, models.ViolationBlockDuration); err != nil {
		// The attempt is already terminated; losing the block only shortens
		// the penalty, so log and move on.
		s.logger.Error("Failed to set violation block", "user_id", userID, "error", err)
	}

	s.logger.Warn("Attempt terminated for repeated violations",
		"attempt_id", attemptID,
		"user_id", userID,
		"switch_count", count)

	return resp, nil
}

// IsBlocked reports whether the user is serving a violation block.
func (s *violationService) IsBlocked(ctx context.Context, userID string) (bool, time.Time, error) {
	blocked, remaining, err := s.cacheManager.GetViolationBlock(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}
	if !blocked {
		return false, time.Time{}, nil
	}
	return true, time.Now().Add(remaining), nil
}

func (s *violationService) terminate(ctx context.Context, attempt *models.TestAttempt) error {
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
		return fmt.Errorf("failed to terminate attempt: %w", err)
	}

	s.publish(events.AttemptTerminated, map[string]interface{}{
		"attempt_id":       attempt.ID,
		"practice_test_id": attempt.PracticeTestID,
		"user_id":          attempt.UserID,
		"blocked_hours":    int(models.ViolationBlockDuration.Hours()),
	})

	return nil
}

func (s *violationService) publish(eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(events.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
