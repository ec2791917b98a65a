package repositories

import (
	"time"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type PracticeTestFilters struct {
	Category       *string          `json:"category"`
	IsActive       *bool            `json:"is_active"`
	ShowInPublic   *bool            `json:"show_in_public"`
	TargetUserType *models.UserType `json:"target_user_type"`
	CreatedBy      *string          `json:"created_by"`
	Limit          int              `json:"limit"`
	Offset         int              `json:"offset"`
	SortBy         string           `json:"sort_by"`    // "created_at", "title", "category"
	SortOrder      string           `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status         *models.AttemptStatus `json:"status"`
	UserID         *string               `json:"user_id"`
	PracticeTestID *uint                 `json:"practice_test_id"`
	DateFrom       *time.Time            `json:"date_from"`
	DateTo         *time.Time            `json:"date_to"`
	Limit          int                   `json:"limit"`
	Offset         int                   `json:"offset"`
	SortBy         string                `json:"sort_by"`
	SortOrder      string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts    int                          `json:"total_attempts"`
	StatusBreakdown  map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore     float64                      `json:"average_score"`
	AverageTimeTaken int                          `json:"average_time_taken"`
	PassRate         float64                      `json:"pass_rate"`
	CompletionRate   float64                      `json:"completion_rate"`
}
