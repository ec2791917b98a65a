package validator

import (
	"time"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

// QuestionRequest represents a single question inside a test payload
type QuestionRequest struct {
	Question      string                 `json:"question" validate:"required,min=1,max=2000"`
	Options       []string               `json:"options" validate:"required,len=4,dive,required,max=500"`
	CorrectAnswer int                    `json:"correct_answer" validate:"min=0,max=3"`
	Marks         int                    `json:"marks" validate:"required,gt=0,max=100"`
	NegativeMarks int                    `json:"negative_marks" validate:"min=0,max=100"`
	Difficulty    models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
}

// PracticeTestCreateRequest represents the request structure for creating practice tests
type PracticeTestCreateRequest struct {
	Title            string            `json:"title" validate:"required,test_title"`
	Description      *string           `json:"description" validate:"omitempty,max=1000"`
	Category         string            `json:"category" validate:"required,min=1,max=100"`
	Questions        []QuestionRequest `json:"questions" validate:"required,min=10,dive"`
	QuestionsPerTest int               `json:"questions_per_test" validate:"required,min=1"`
	Duration         int               `json:"duration" validate:"required,test_duration"`
	PassingScore     int               `json:"passing_score" validate:"passing_score"`
	AllowRepeat      bool              `json:"allow_repeat"`
	RepeatAfterHours int               `json:"repeat_after_hours" validate:"omitempty,repeat_after_hours"`
	EnableCooldown   bool              `json:"enable_cooldown"`
	TargetUserType   models.UserType   `json:"target_user_type" validate:"required,target_user_type"`
	IsActive         *bool             `json:"is_active"`
	ShowInPublic     bool              `json:"show_in_public"`
}

// PracticeTestUpdateRequest represents the request structure for updating practice tests
type PracticeTestUpdateRequest struct {
	Title            *string           `json:"title" validate:"omitempty,test_title"`
	Description      *string           `json:"description" validate:"omitempty,max=1000"`
	Category         *string           `json:"category" validate:"omitempty,min=1,max=100"`
	Questions        []QuestionRequest `json:"questions" validate:"omitempty,min=10,dive"`
	QuestionsPerTest *int              `json:"questions_per_test" validate:"omitempty,min=1"`
	Duration         *int              `json:"duration" validate:"omitempty,test_duration"`
	PassingScore     *int              `json:"passing_score" validate:"omitempty,passing_score"`
	AllowRepeat      *bool             `json:"allow_repeat"`
	RepeatAfterHours *int              `json:"repeat_after_hours" validate:"omitempty,repeat_after_hours"`
	EnableCooldown   *bool             `json:"enable_cooldown"`
	TargetUserType   *models.UserType  `json:"target_user_type" validate:"omitempty,target_user_type"`
	IsActive         *bool             `json:"is_active"`
	ShowInPublic     *bool             `json:"show_in_public"`
}

// AnswerSubmission represents one answered question in a submit payload.
// SelectedAnswer is nil for skipped questions.
type AnswerSubmission struct {
	QuestionIndex  int  `json:"question_index" validate:"min=0"`
	SelectedAnswer *int `json:"selected_answer" validate:"omitempty,min=0,max=3"`
	TimeSpent      int  `json:"time_spent" validate:"min=0"`
}

// SubmitAttemptRequest represents the request structure for submitting an
// attempt. Time taken is derived from the attempt's start time server-side.
type SubmitAttemptRequest struct {
	Answers []AnswerSubmission `json:"answers" validate:"required,dive"`
}

// ViolationReportRequest represents a proctoring event reported by the client
type ViolationReportRequest struct {
	Type    models.ViolationType `json:"type" validate:"required,violation_type"`
	Details *string              `json:"details" validate:"omitempty,max=500"`
}

// AssignBatchRequest represents assigning a test to a batch
type AssignBatchRequest struct {
	BatchID      uint       `json:"batch_id" validate:"required"`
	DueDate      *time.Time `json:"due_date" validate:"omitempty,future_date"`
	Instructions *string    `json:"instructions" validate:"omitempty,max=1000"`
}
