package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptTimeOut    AttemptStatus = "timeout"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// StaleAttemptAge is how long an in_progress attempt may sit before the
// sweeper (or the next start call) reclaims it as abandoned.
const StaleAttemptAge = 2 * time.Hour

// AttemptAnswer records one scored answer within an attempt.
type AttemptAnswer struct {
	QuestionIndex  int  `json:"question_index"`
	SelectedAnswer int  `json:"selected_answer"`
	IsCorrect      bool `json:"is_correct"`
	MarksAwarded   int  `json:"marks_awarded"`
	TimeSpent      int  `json:"time_spent"` // seconds
}

// QuestionSnapshot captures the marking scheme of one asked question at
// attempt start. Index points into the test's question list.
type QuestionSnapshot struct {
	Index         int `json:"index"`
	Marks         int `json:"marks"`
	NegativeMarks int `json:"negative_marks"`
}

// TestSettingsSnapshot is written once when the attempt is created and is
// the source of truth for scoring and reporting afterwards, so edits to the
// live test never change a historical result.
type TestSettingsSnapshot struct {
	Duration         int                `json:"duration"`      // minutes
	PassingScore     int                `json:"passing_score"` // percent
	QuestionsPerTest int                `json:"questions_per_test"`
	Questions        []QuestionSnapshot `json:"questions"`
}

type TestAttempt struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	UserID         string `json:"user_id" gorm:"not null;index;size:255"`
	PracticeTestID uint   `json:"practice_test_id" gorm:"not null;index"`
	TestTitle      string `json:"test_title" gorm:"size:200"`

	// The specific subset and order of question indices shown to this user.
	QuestionsAsked datatypes.JSONSlice[int] `json:"questions_asked" gorm:"type:jsonb"`
	TotalQuestions int                      `json:"total_questions" gorm:"not null"`

	Answers datatypes.JSONSlice[AttemptAnswer] `json:"answers" gorm:"type:jsonb"`

	// Scoring
	Score          int  `json:"score"`           // percent, 0-100
	ObtainedMarks  int  `json:"obtained_marks"`  // signed, negative marking applies
	CorrectAnswers int  `json:"correct_answers"`
	WrongAnswers   int  `json:"wrong_answers"`
	Passed         bool `json:"passed"`

	// Timing
	TimeTaken   int        `json:"time_taken"` // seconds
	MaxTime     int        `json:"max_time"`   // seconds, duration*60 at start
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Status        AttemptStatus `json:"status" gorm:"default:in_progress;index;size:20"`
	AttemptsCount int           `json:"attempts_count"` // ordinal for this user on this test

	TestSettingsSnapshot datatypes.JSONType[TestSettingsSnapshot] `json:"test_settings_snapshot" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User         User         `json:"-" gorm:"foreignKey:UserID"`
	PracticeTest PracticeTest `json:"-" gorm:"foreignKey:PracticeTestID"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// Deadline is the nominal submission deadline. The server does not reject
// late submits; the sweeper uses this to drive the timeout transition.
func (a *TestAttempt) Deadline() time.Time {
	if a.StartedAt == nil {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(a.MaxTime) * time.Second)
}

func (a *TestAttempt) IsStale(now time.Time) bool {
	return a.Status == AttemptInProgress &&
		a.StartedAt != nil &&
		now.Sub(*a.StartedAt) >= StaleAttemptAge
}
