package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
	RoleOwner   UserRole = "owner"
)

// UserType segments the audience a practice test targets. It is distinct
// from UserRole: a student-role account may carry a corporate user type.
type UserType string

const (
	UserTypeStudent    UserType = "student"
	UserTypeCorporate  UserType = "corporate"
	UserTypeGovernment UserType = "government"
)

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"default:student;size:20;index"`
	UserType UserType `json:"user_type" gorm:"size:20;index"`

	// Status
	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// EffectiveUserType falls back to the role when no user type was set,
// so legacy accounts still match public tests targeted at students.
func (u *User) EffectiveUserType() UserType {
	if u.UserType != "" {
		return u.UserType
	}
	return UserType(u.Role)
}

func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin || u.Role == RoleOwner
}
