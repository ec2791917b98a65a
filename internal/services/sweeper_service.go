package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/events"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

// timeoutGrace gives late submitters a window past the nominal deadline
// before the sweeper closes the attempt as timed out.
const timeoutGrace = 5 * time.Minute

// sweepBatchSize bounds how many attempts one pass touches.
const sweepBatchSize = 200

type sweeperService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.Publisher
	interval  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSweeperService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	publisher events.Publisher,
	interval time.Duration,
) SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &sweeperService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or the context ends.
func (s *sweeperService) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Attempt sweeper started", "interval", s.interval.String())

		for {
			select {
			case <-ticker.C:
				if result, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("Sweep failed", "error", err)
				} else if result.TimedOut > 0 || result.Abandoned > 0 {
					s.logger.Info("Sweep completed",
						"timed_out", result.TimedOut,
						"abandoned", result.Abandoned)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *sweeperService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

// SweepOnce closes out attempts in two passes. Attempts past their exam
// deadline plus grace become timeout; the rest of the stale in_progress
// attempts (two hours without a submit) become abandoned. Both close
// unscored: answers were never submitted, so there is nothing to grade.
func (s *sweeperService) SweepOnce(ctx context.Context) (*SweepResult, error) {
	now := time.Now()
	result := &SweepResult{}

	pastDeadline, err := s.repo.Attempt().GetPastDeadline(ctx, s.db, now, timeoutGrace, sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts past deadline: %w", err)
	}

	for _, attempt := range pastDeadline {
		if err := s.close(ctx, attempt, models.AttemptTimeOut, now); err != nil {
			s.logger.Error("Failed to time out attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		result.TimedOut++
	}

	stale, err := s.repo.Attempt().GetStaleInProgress(ctx, s.db, now.Add(-models.StaleAttemptAge), sweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale attempts: %w", err)
	}

	for _, attempt := range stale {
		// The deadline pass may have just closed this one.
		if attempt.Status != models.AttemptInProgress {
			continue
		}
		if err := s.close(ctx, attempt, models.AttemptAbandoned, now); err != nil {
			s.logger.Error("Failed to abandon attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		result.Abandoned++
	}

	return result, nil
}

func (s *sweeperService) close(ctx context.Context, attempt *models.TestAttempt, status models.AttemptStatus, now time.Time) error {
	attempt.Status = status
	attempt.CompletedAt = &now
	if attempt.StartedAt != nil {
		elapsed := int(now.Sub(*attempt.StartedAt).Seconds())
		if elapsed > attempt.MaxTime {
			elapsed = attempt.MaxTime
		}
		attempt.TimeTaken = elapsed
	}

	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		return err
	}

	eventType := events.AttemptAbandoned
	if status == models.AttemptTimeOut {
		eventType = events.AttemptTimedOut
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(events.NewEvent(eventType, map[string]interface{}{
			"attempt_id":       attempt.ID,
			"practice_test_id": attempt.PracticeTestID,
			"user_id":          attempt.UserID,
		})); err != nil {
			s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
		}
	}

	return nil
}
