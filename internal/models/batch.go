package models

import (
	"time"

	"gorm.io/gorm"
)

// Batch is an administrative grouping of users used to control which
// practice tests they can see and attempt.
type Batch struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	IsActive bool   `json:"is_active" gorm:"default:true;index"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Members       []BatchMembership   `json:"-" gorm:"foreignKey:BatchID"`
	AssignedTests []BatchAssignedTest `json:"-" gorm:"foreignKey:BatchID"`
}

func (Batch) TableName() string {
	return "batches"
}

type BatchMembership struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	BatchID  uint   `json:"batch_id" gorm:"not null;index;uniqueIndex:idx_batch_member"`
	UserID   string `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_batch_member"`
	IsActive bool   `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Batch Batch `json:"-" gorm:"foreignKey:BatchID"`
	User  User  `json:"-" gorm:"foreignKey:UserID"`
}

func (BatchMembership) TableName() string {
	return "batch_memberships"
}

// BatchAssignedTest links a practice test to a batch with assignment
// metadata. It only gates visibility and access, never scoring.
type BatchAssignedTest struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	BatchID        uint `json:"batch_id" gorm:"not null;index;uniqueIndex:idx_batch_test"`
	PracticeTestID uint `json:"practice_test_id" gorm:"not null;index;uniqueIndex:idx_batch_test"`

	DueDate      *time.Time `json:"due_date"`
	Instructions *string    `json:"instructions" gorm:"type:text"`
	AssignedBy   string     `json:"assigned_by" gorm:"not null;size:255"`
	IsActive     bool       `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Batch        Batch        `json:"-" gorm:"foreignKey:BatchID"`
	PracticeTest PracticeTest `json:"-" gorm:"foreignKey:PracticeTestID"`
}

func (BatchAssignedTest) TableName() string {
	return "batch_assigned_tests"
}
