package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/events"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

func TestNewSweeperService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		publisher events.Publisher
		interval  time.Duration
	}
	tests := []struct {
		name string
		args args
		want SweeperService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewSweeperService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.publisher, tt.args.interval)
		})
	}
}

func TestSweeperService_SweepOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	mockRepo := NewMockRepository()
	mockPublisher := events.NewMockPublisher()

	service := &sweeperService{
		repo:      mockRepo,
		logger:    logger,
		publisher: mockPublisher,
	}

	startedLongAgo := time.Now().Add(-3 * time.Hour)
	startedPastDeadline := time.Now().Add(-40 * time.Minute)

	expired := &models.TestAttempt{
		ID:        1,
		UserID:    "user-1",
		Status:    models.AttemptInProgress,
		StartedAt: &startedPastDeadline,
		MaxTime:   30 * 60,
	}
	stale := &models.TestAttempt{
		ID:        2,
		UserID:    "user-2",
		Status:    models.AttemptInProgress,
		StartedAt: &startedLongAgo,
		MaxTime:   4 * 60 * 60,
	}

	mockRepo.attempt.pastDeadline = []*models.TestAttempt{expired}
	mockRepo.attempt.stale = []*models.TestAttempt{stale}

	result, err := service.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}

	if result.TimedOut != 1 || result.Abandoned != 1 {
		t.Errorf("got timed_out=%d abandoned=%d, want 1/1", result.TimedOut, result.Abandoned)
	}

	if expired.Status != models.AttemptTimeOut {
		t.Errorf("expired attempt status = %s, want timeout", expired.Status)
	}
	if expired.CompletedAt == nil {
		t.Error("expired attempt should have a completion time")
	}
	if expired.TimeTaken != expired.MaxTime {
		t.Errorf("expired attempt TimeTaken = %d, want clamped to MaxTime %d", expired.TimeTaken, expired.MaxTime)
	}

	if stale.Status != models.AttemptAbandoned {
		t.Errorf("stale attempt status = %s, want abandoned", stale.Status)
	}
	if stale.Score != 0 || stale.Passed {
		t.Error("swept attempts must close unscored")
	}

	if got := mockPublisher.EventsOfType(events.AttemptTimedOut); len(got) != 1 {
		t.Errorf("published %d timeout events, want 1", len(got))
	}
	if got := mockPublisher.EventsOfType(events.AttemptAbandoned); len(got) != 1 {
		t.Errorf("published %d abandon events, want 1", len(got))
	}
}

func TestSweeperService_SweepOnce_SkipsAlreadyClosed(t *testing.T) {
	mockRepo := NewMockRepository()
	mockPublisher := events.NewMockPublisher()

	service := &sweeperService{
		repo:      mockRepo,
		logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
		publisher: mockPublisher,
	}

	// The same attempt shows up in both passes; the deadline pass closes it
	// first and the stale pass must not touch it again.
	startedAt := time.Now().Add(-3 * time.Hour)
	attempt := &models.TestAttempt{
		ID:        1,
		UserID:    "user-1",
		Status:    models.AttemptInProgress,
		StartedAt: &startedAt,
		MaxTime:   30 * 60,
	}
	mockRepo.attempt.pastDeadline = []*models.TestAttempt{attempt}
	mockRepo.attempt.stale = []*models.TestAttempt{attempt}

	result, err := service.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}

	if result.TimedOut != 1 || result.Abandoned != 0 {
		t.Errorf("got timed_out=%d abandoned=%d, want 1/0", result.TimedOut, result.Abandoned)
	}
	if attempt.Status != models.AttemptTimeOut {
		t.Errorf("attempt status = %s, want timeout", attempt.Status)
	}
}

func TestSweeperService_StartStop(t *testing.T) {
	service := NewSweeperService(NewMockRepository(), nil,
		slog.New(slog.NewTextHandler(os.Stdout, nil)),
		events.NewMockPublisher(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	service.Stop()

	// Stop is idempotent.
	service.Stop()
}
