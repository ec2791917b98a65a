package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

type accessService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewAccessService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) AccessService {
	return &accessService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// CanAccess reports whether a user may take a test. Membership in any active
// batch routes the user exclusively through batch assignments; the public
// catalog for their user type applies only to users with no active batch.
func (s *accessService) CanAccess(ctx context.Context, userID string, testID uint) (bool, error) {
	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrTestNotFound
		}
		return false, fmt.Errorf("failed to get practice test: %w", err)
	}

	if !test.IsActive {
		return false, nil
	}

	batchIDs, err := s.repo.Batch().GetActiveBatchIDsForUser(ctx, s.db, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user batches: %w", err)
	}

	if len(batchIDs) > 0 {
		assigned, err := s.repo.Batch().HasActiveAssignment(ctx, s.db, batchIDs, testID)
		if err != nil {
			return false, fmt.Errorf("failed to check batch assignment: %w", err)
		}
		return assigned, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	return test.ShowInPublic && test.TargetUserType == user.EffectiveUserType(), nil
}

// GetAvailableTests builds the catalog for a user, each entry annotated with
// attempt state and cooldown so the client can render the start button
// correctly. Batch members see their assignments; everyone else sees the
// public tests for their user type. The two sources never mix.
func (s *accessService) GetAvailableTests(ctx context.Context, userID string) ([]*AvailableTestResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	batchIDs, err := s.repo.Batch().GetActiveBatchIDsForUser(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user batches: %w", err)
	}

	var tests []*models.PracticeTest
	if len(batchIDs) > 0 {
		assigned, err := s.repo.PracticeTest().GetAssignedToBatches(ctx, s.db, batchIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get assigned tests: %w", err)
		}
		// A test assigned to several of the user's batches appears once.
		seen := make(map[uint]bool, len(assigned))
		tests = make([]*models.PracticeTest, 0, len(assigned))
		for _, test := range assigned {
			if seen[test.ID] {
				continue
			}
			seen[test.ID] = true
			tests = append(tests, test)
		}
	} else {
		tests, err = s.repo.PracticeTest().GetPublicForUserType(ctx, s.db, user.EffectiveUserType())
		if err != nil {
			return nil, fmt.Errorf("failed to get public tests: %w", err)
		}
	}

	now := time.Now()
	responses := make([]*AvailableTestResponse, 0, len(tests))
	for _, test := range tests {
		resp, err := s.annotate(ctx, test, userID, now)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].Title < responses[j].Title
	})

	return responses, nil
}

func (s *accessService) annotate(ctx context.Context, test *models.PracticeTest, userID string, now time.Time) (*AvailableTestResponse, error) {
	resp := &AvailableTestResponse{
		ID:               test.ID,
		Title:            test.Title,
		Description:      test.Description,
		Category:         test.Category,
		TotalQuestions:   len(test.Questions),
		QuestionsPerTest: test.EffectiveQuestionsPerTest(),
		Duration:         test.Duration,
		PassingScore:     test.PassingScore,
		AllowRepeat:      test.AllowRepeat,
		CanStart:         true,
	}

	completed, err := s.repo.Attempt().CountCompleted(ctx, s.db, userID, test.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	resp.AttemptsCount = completed

	if active, err := s.repo.Attempt().GetActiveAttempt(ctx, s.db, userID, test.ID); err == nil && active != nil && !active.IsStale(now) {
		resp.HasActiveAttempt = true
		resp.ActiveAttemptID = &active.ID
		return resp, nil
	} else if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}

	if completed == 0 {
		return resp, nil
	}

	if !test.AllowRepeat {
		resp.CanStart = false
		return resp, nil
	}

	last, err := s.repo.Attempt().GetLatestCompleted(ctx, s.db, userID, test.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return resp, nil
		}
		return nil, fmt.Errorf("failed to get latest completed attempt: %w", err)
	}

	resp.LastScore = &last.Score
	passed := last.Passed
	resp.LastPassed = &passed

	if until := cooldownUntil(test, last); !until.IsZero() && now.Before(until) {
		resp.CanStart = false
		resp.CooldownUntil = &until
	}

	return resp, nil
}
