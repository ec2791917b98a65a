package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// MinQuestionsPerTest is the smallest question bank a test may carry.
const MinQuestionsPerTest = 10

// OptionsPerQuestion is fixed: every question offers exactly four options.
const OptionsPerQuestion = 4

// Question is one entry of a test's ordered question bank. Questions are
// owned by their PracticeTest and addressed by position, so the whole list
// is stored as a JSONB column rather than a separate table.
type Question struct {
	Question      string          `json:"question" validate:"required,max=2000"`
	Options       []string        `json:"options" validate:"len=4,dive,required"`
	CorrectAnswer int             `json:"correct_answer" validate:"min=0,max=3"`
	Marks         int             `json:"marks" validate:"min=0"`
	NegativeMarks int             `json:"negative_marks" validate:"min=0"`
	Difficulty    DifficultyLevel `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

type PracticeTest struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Category    string  `json:"category" gorm:"size:100;index" validate:"omitempty,max=100"`

	// Question bank, ordered. TotalQuestions mirrors len(Questions) and is
	// kept in sync on every write.
	Questions        datatypes.JSONSlice[Question] `json:"questions" gorm:"type:jsonb"`
	TotalQuestions   int                           `json:"total_questions" gorm:"not null"`
	QuestionsPerTest int                           `json:"questions_per_test" gorm:"not null" validate:"required,min=1"`

	// Attempt settings
	Duration     int `json:"duration" gorm:"not null" validate:"required,min=5,max=300"` // minutes
	PassingScore int `json:"passing_score" gorm:"not null" validate:"min=0,max=100"`     // percent

	// Retake policy
	AllowRepeat      bool `json:"allow_repeat" gorm:"default:true"`
	RepeatAfterHours int  `json:"repeat_after_hours" gorm:"default:24" validate:"min=0"`
	EnableCooldown   bool `json:"enable_cooldown" gorm:"default:false"`

	// Visibility
	TargetUserType UserType `json:"target_user_type" gorm:"size:20;default:student;index" validate:"omitempty,oneof=student corporate government"`
	IsActive       bool     `json:"is_active" gorm:"default:true;index"`
	ShowInPublic   bool     `json:"show_in_public" gorm:"default:false"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Creator     User              `json:"-" gorm:"foreignKey:CreatedBy"`
	Attempts    []TestAttempt     `json:"-" gorm:"foreignKey:PracticeTestID"`
	Assignments []BatchAssignedTest `json:"-" gorm:"foreignKey:PracticeTestID"`
}

func (PracticeTest) TableName() string {
	return "practice_tests"
}

// EffectiveQuestionsPerTest clamps the configured subset size to the bank size.
func (t *PracticeTest) EffectiveQuestionsPerTest() int {
	if t.QuestionsPerTest <= 0 || t.QuestionsPerTest > len(t.Questions) {
		return len(t.Questions)
	}
	return t.QuestionsPerTest
}
