package services

import (
	"context"
	"time"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

// ===== RESPONSE DTOs =====

// AvailableTestResponse is one entry of the test catalog a user may take.
type AvailableTestResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	Category         string     `json:"category"`
	TotalQuestions   int        `json:"total_questions"`
	QuestionsPerTest int        `json:"questions_per_test"`
	Duration         int        `json:"duration"`
	PassingScore     int        `json:"passing_score"`
	AllowRepeat      bool       `json:"allow_repeat"`
	AttemptsCount    int        `json:"attempts_count"`
	HasActiveAttempt bool       `json:"has_active_attempt"`
	ActiveAttemptID  *uint      `json:"active_attempt_id,omitempty"`
	CanStart         bool       `json:"can_start"`
	CooldownUntil    *time.Time `json:"cooldown_until,omitempty"`
	LastScore        *int       `json:"last_score,omitempty"`
	LastPassed       *bool      `json:"last_passed,omitempty"`
}

// AttemptQuestion is a question as shown to the test taker. Correct answers
// never leave the server while the attempt is in progress.
type AttemptQuestion struct {
	Index         int      `json:"index"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Marks         int      `json:"marks"`
	NegativeMarks int      `json:"negative_marks"`
}

// AttemptResponse is an in-progress attempt with its question sheet.
type AttemptResponse struct {
	ID             uint                 `json:"id"`
	PracticeTestID uint                 `json:"practice_test_id"`
	TestTitle      string               `json:"test_title"`
	Status         models.AttemptStatus `json:"status"`
	AttemptNumber  int                  `json:"attempt_number"`
	StartedAt      time.Time            `json:"started_at"`
	MaxTime        int                  `json:"max_time"`
	TimeRemaining  int                  `json:"time_remaining"`
	TotalQuestions int                  `json:"total_questions"`
	Questions      []AttemptQuestion    `json:"questions"`
	Resumed        bool                 `json:"resumed"`
}

// AnswerReview is the per-question breakdown of a finished attempt.
type AnswerReview struct {
	QuestionIndex  int      `json:"question_index"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	SelectedAnswer *int     `json:"selected_answer"`
	CorrectAnswer  int      `json:"correct_answer"`
	IsCorrect      bool     `json:"is_correct"`
	MarksAwarded   int      `json:"marks_awarded"`
	TimeSpent      int      `json:"time_spent"`
}

// ResultResponse is the scored outcome of a completed attempt.
type ResultResponse struct {
	AttemptID      uint                 `json:"attempt_id"`
	PracticeTestID uint                 `json:"practice_test_id"`
	TestTitle      string               `json:"test_title"`
	Status         models.AttemptStatus `json:"status"`
	Score          int                  `json:"score"`
	ObtainedMarks  int                  `json:"obtained_marks"`
	TotalMarks     int                  `json:"total_marks"`
	CorrectAnswers int                  `json:"correct_answers"`
	WrongAnswers   int                  `json:"wrong_answers"`
	Unanswered     int                  `json:"unanswered"`
	Passed         bool                 `json:"passed"`
	PassingScore   int                  `json:"passing_score"`
	TimeTaken      int                  `json:"time_taken"`
	CompletedAt    *time.Time           `json:"completed_at"`
	Answers        []AnswerReview       `json:"answers,omitempty"`
}

// AttemptSummary is one row of a user's attempt history.
type AttemptSummary struct {
	ID             uint                 `json:"id"`
	PracticeTestID uint                 `json:"practice_test_id"`
	TestTitle      string               `json:"test_title"`
	Status         models.AttemptStatus `json:"status"`
	Score          int                  `json:"score"`
	Passed         bool                 `json:"passed"`
	AttemptNumber  int                  `json:"attempt_number"`
	StartedAt      time.Time            `json:"started_at"`
	CompletedAt    *time.Time           `json:"completed_at"`
	TimeTaken      int                  `json:"time_taken"`
}

// ViolationResponse reports the state of the interlock after a violation.
type ViolationResponse struct {
	ViolationCount      int  `json:"violation_count"`
	RemainingViolations int  `json:"remaining_violations"`
	Terminated          bool `json:"terminated"`
}

// TestStatsResponse aggregates attempt outcomes for one test.
type TestStatsResponse struct {
	PracticeTestID uint                      `json:"practice_test_id"`
	Title          string                    `json:"title"`
	Stats          repositories.AttemptStats `json:"stats"`
}

// SweepResult reports what one housekeeping pass changed.
type SweepResult struct {
	TimedOut  int
	Abandoned int
}

// ===== SERVICE INTERFACES =====

// AccessService decides which tests a user may see and take.
type AccessService interface {
	GetAvailableTests(ctx context.Context, userID string) ([]*AvailableTestResponse, error)
	CanAccess(ctx context.Context, userID string, testID uint) (bool, error)
}

// AttemptService owns the attempt lifecycle from start to scored result.
type AttemptService interface {
	Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*ResultResponse, error)
	GetActive(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	List(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*AttemptSummary, int64, error)
	Submit(ctx context.Context, attemptID uint, userID string, req *validator.SubmitAttemptRequest) (*ResultResponse, error)
	Delete(ctx context.Context, attemptID uint, userID string) error
}

// ViolationService records proctoring events and enforces the interlock.
type ViolationService interface {
	Report(ctx context.Context, attemptID uint, userID string, req *validator.ViolationReportRequest) (*ViolationResponse, error)
	IsBlocked(ctx context.Context, userID string) (bool, time.Time, error)
}

// PracticeTestService covers the admin surface: test management,
// batch assignment and per-user resets.
type PracticeTestService interface {
	Create(ctx context.Context, req *validator.PracticeTestCreateRequest, creatorID string) (*models.PracticeTest, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.PracticeTest, error)
	Update(ctx context.Context, id uint, req *validator.PracticeTestUpdateRequest, userID string) (*models.PracticeTest, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.PracticeTestFilters, userID string) ([]*models.PracticeTest, int64, error)

	AssignToBatch(ctx context.Context, testID uint, req *validator.AssignBatchRequest, userID string) error
	UnassignFromBatch(ctx context.Context, testID, batchID uint, userID string) error
	GetAssignments(ctx context.Context, testID uint, userID string) ([]*models.BatchAssignedTest, error)

	GetStats(ctx context.Context, testID uint, userID string) (*TestStatsResponse, error)
	ResetCooldown(ctx context.Context, testID uint, targetUserID, adminID string) error
	ResetUsage(ctx context.Context, testID uint, targetUserID, adminID string) error
}

// ImportExportService moves question banks in and out as xlsx workbooks.
type ImportExportService interface {
	ImportQuestions(ctx context.Context, testID uint, userID string, data []byte) (int, error)
	ExportQuestions(ctx context.Context, testID uint, userID string) ([]byte, string, error)
}

// SweeperService closes out attempts their owners never finished.
type SweeperService interface {
	Start(ctx context.Context)
	Stop()
	SweepOnce(ctx context.Context) (*SweepResult, error)
}
