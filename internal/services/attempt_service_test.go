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
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

func TestNewAttemptService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
		access    AccessService
	}
	tests := []struct {
		name string
		args args
		want AttemptService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewAttemptService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator, tt.args.access, nil, nil)
		})
	}
}

func newAttemptFixture() (*attemptService, *MockRepository, *events.MockPublisher) {
	mockRepo := NewMockRepository()
	publisher := events.NewMockPublisher()
	service := &attemptService{
		repo:      mockRepo,
		logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
		validator: validator.NewValidator(),
		publisher: publisher,
	}
	return service, mockRepo, publisher
}

func completedAttempt(id uint, userID string) *models.TestAttempt {
	completedAt := time.Now().Add(-time.Hour)
	return &models.TestAttempt{
		ID:             id,
		UserID:         userID,
		PracticeTestID: 1,
		TestTitle:      "Trade Documentation Basics",
		Status:         models.AttemptCompleted,
		CompletedAt:    &completedAt,
	}
}

func TestAttemptService_GetByID_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("owner reads their own result", func(t *testing.T) {
		service, mockRepo, _ := newAttemptFixture()
		mockRepo.attempt.attempts = map[uint]*models.TestAttempt{10: completedAttempt(10, "user-1")}

		result, err := service.GetByID(ctx, 10, "user-1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if result.AttemptID != 10 {
			t.Errorf("AttemptID = %d, want 10", result.AttemptID)
		}
	})

	t.Run("admin reads another user's result", func(t *testing.T) {
		service, mockRepo, _ := newAttemptFixture()
		mockRepo.attempt.attempts = map[uint]*models.TestAttempt{10: completedAttempt(10, "user-1")}
		mockRepo.user.users = map[string]*models.User{
			"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
		}

		if _, err := service.GetByID(ctx, 10, "admin-1"); err != nil {
			t.Errorf("GetByID() error = %v, want admin read to succeed", err)
		}
	})

	t.Run("other students are refused", func(t *testing.T) {
		service, mockRepo, _ := newAttemptFixture()
		mockRepo.attempt.attempts = map[uint]*models.TestAttempt{10: completedAttempt(10, "user-1")}
		mockRepo.user.users = map[string]*models.User{
			"user-2": {ID: "user-2", Role: models.RoleStudent},
		}

		_, err := service.GetByID(ctx, 10, "user-2")
		if _, ok := err.(*PermissionError); !ok {
			t.Errorf("GetByID() error = %v, want *PermissionError", err)
		}
	})
}

func TestAttemptService_Delete_RemovesInProgressAttempt(t *testing.T) {
	ctx := context.Background()
	service, mockRepo, _ := newAttemptFixture()

	startedAt := time.Now().Add(-10 * time.Minute)
	attempt := &models.TestAttempt{
		ID:             10,
		UserID:         "user-1",
		PracticeTestID: 1,
		Status:         models.AttemptInProgress,
		StartedAt:      &startedAt,
	}
	mockRepo.attempt.attempts = map[uint]*models.TestAttempt{10: attempt}

	if err := service.Delete(ctx, 10, "user-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(mockRepo.attempt.deleted) != 1 || mockRepo.attempt.deleted[0] != 10 {
		t.Errorf("deleted = %v, want the attempt row removed", mockRepo.attempt.deleted)
	}
	// The row goes away as-is; no status rewrite on the way out.
	if len(mockRepo.attempt.updated) != 0 {
		t.Errorf("attempt was updated before deletion: %+v", mockRepo.attempt.updated)
	}
	if attempt.Status != models.AttemptInProgress {
		t.Errorf("Status = %s, want untouched in_progress", attempt.Status)
	}
}

func TestAttemptService_Delete_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	service, mockRepo, _ := newAttemptFixture()
	mockRepo.attempt.attempts = map[uint]*models.TestAttempt{10: completedAttempt(10, "user-1")}
	mockRepo.user.users = map[string]*models.User{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
	}

	err := service.Delete(ctx, 10, "admin-1")
	if _, ok := err.(*PermissionError); !ok {
		t.Errorf("Delete() error = %v, want *PermissionError (delete stays owner-only)", err)
	}
	if len(mockRepo.attempt.deleted) != 0 {
		t.Errorf("deleted = %v, want no deletion", mockRepo.attempt.deleted)
	}
}

func TestAttemptService_Submit_TimeTakenFromStartTime(t *testing.T) {
	ctx := context.Background()
	service, mockRepo, _ := newAttemptFixture()

	questions := []models.Question{
		{Question: "Q0", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0, Marks: 4},
		{Question: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1, Marks: 4},
	}
	test := newScoringTest(questions, 50)
	attempt := newScoringAttempt(test, []int{0, 1})

	// Started well past the allotted time; the recorded duration is the real
	// elapsed time, not the test limit.
	startedAt := time.Now().Add(-90 * time.Minute)
	attempt.StartedAt = &startedAt
	attempt.MaxTime = test.Duration * 60

	mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{test.ID: test}
	mockRepo.attempt.attempts = map[uint]*models.TestAttempt{attempt.ID: attempt}

	result, err := service.Submit(ctx, attempt.ID, "user-1", &validator.SubmitAttemptRequest{
		Answers: []validator.AnswerSubmission{
			{QuestionIndex: 0, SelectedAnswer: intPtr(0)},
			{QuestionIndex: 1, SelectedAnswer: intPtr(1)},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	wantElapsed := int((90 * time.Minute).Seconds())
	if result.TimeTaken < wantElapsed || result.TimeTaken > wantElapsed+5 {
		t.Errorf("TimeTaken = %d, want about %d seconds", result.TimeTaken, wantElapsed)
	}
	if result.TimeTaken <= attempt.MaxTime {
		t.Errorf("TimeTaken = %d, want elapsed time beyond the %ds limit", result.TimeTaken, attempt.MaxTime)
	}
	if len(mockRepo.attempt.updated) != 1 {
		t.Fatalf("attempt saved %d times, want 1", len(mockRepo.attempt.updated))
	}
	if mockRepo.attempt.updated[0].TimeTaken != result.TimeTaken {
		t.Errorf("stored TimeTaken = %d, response %d", mockRepo.attempt.updated[0].TimeTaken, result.TimeTaken)
	}
}
