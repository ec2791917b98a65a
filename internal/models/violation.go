package models

import "time"

type ViolationType string

const (
	ViolationTabSwitch    ViolationType = "tab_switch"
	ViolationWindowSwitch ViolationType = "window_switch"
	ViolationCopyAttempt  ViolationType = "copy_attempt"
	ViolationRightClick   ViolationType = "right_click"
)

// MaxSwitchViolations is the cumulative tab/window-switch count that
// terminates an attempt and triggers the 24-hour block.
const MaxSwitchViolations = 3

// ViolationBlockDuration is how long a user is locked out of new attempts
// after an attempt is terminated for repeated violations.
const ViolationBlockDuration = 24 * time.Hour

// SecurityViolation is one reported proctoring event tied to an attempt.
type SecurityViolation struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	TestAttemptID uint          `json:"test_attempt_id" gorm:"not null;index"`
	UserID        string        `json:"user_id" gorm:"not null;index;size:255"`
	Type          ViolationType `json:"type" gorm:"not null;size:30"`
	Details       *string       `json:"details" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	TestAttempt TestAttempt `json:"-" gorm:"foreignKey:TestAttemptID"`
	User        User        `json:"-" gorm:"foreignKey:UserID"`
}

func (SecurityViolation) TableName() string {
	return "security_violations"
}

// CountsTowardTermination reports whether this violation type feeds the
// three-strike interlock. Other types are recorded but never terminate.
func (v ViolationType) CountsTowardTermination() bool {
	return v == ViolationTabSwitch || v == ViolationWindowSwitch
}
