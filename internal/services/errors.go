package services

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the service layer. Handlers map these to
// HTTP status codes.
var (
	ErrTestNotFound         = errors.New("practice test not found")
	ErrTestNotActive        = errors.New("practice test is not active")
	ErrNoQuestionsAvailable = errors.New("practice test has no questions available")

	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrRepeatNotAllowed        = errors.New("test does not allow retakes")

	ErrUserNotFound = errors.New("user not found")

	ErrBatchAssignmentNotFound = errors.New("batch assignment not found")
	ErrBatchAssignmentExists   = errors.New("test is already assigned to this batch")
)

// PermissionError indicates the caller is not allowed to act on a resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError indicates a domain rule rejected the operation.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

// CooldownError indicates the retake cooldown has not elapsed yet.
type CooldownError struct {
	PracticeTestID    uint
	NextAvailableTime time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("test %d is on cooldown until %s", e.PracticeTestID, e.NextAvailableTime.Format(time.RFC3339))
}

// ViolationBlockError indicates the user is serving a violation block.
type ViolationBlockError struct {
	UserID       string
	BlockedUntil time.Time
}

func (e *ViolationBlockError) Error() string {
	return fmt.Sprintf("user %s is blocked until %s", e.UserID, e.BlockedUntil.Format(time.RFC3339))
}
