package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iiftl-portal/practice-test-service/internal/services"
	"github.com/iiftl-portal/practice-test-service/internal/utils"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

// ErrorResponse is the envelope for all error payloads.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps success payloads that carry extra metadata.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PaginatedResponse wraps list payloads with totals.
type PaginatedResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// BaseHandler carries the pieces every handler shares.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the start of handling with request-scoped attributes.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

// parseIDParam reads a uint path parameter; on failure it writes the 400
// response and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// userID pulls the authenticated user from the context; on failure it
// writes the 401 response and returns "".
func (h *BaseHandler) userID(c *gin.Context) string {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
	}
	return userID
}

// handleServiceError maps service-layer errors onto HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var permErr *services.PermissionError
	var ruleErr *services.BusinessRuleError
	var cooldownErr *services.CooldownError
	var blockErr *services.ViolationBlockError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, services.ErrTestNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrBatchAssignmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptAlreadySubmitted),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrBatchAssignmentExists):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrTestNotActive),
		errors.Is(err, services.ErrRepeatNotAllowed),
		errors.Is(err, services.ErrNoQuestionsAvailable):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case errors.As(err, &cooldownErr):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Test is on cooldown",
			Details: gin.H{
				"practice_test_id":    cooldownErr.PracticeTestID,
				"next_available_time": cooldownErr.NextAvailableTime.Format(time.RFC3339),
			},
		})

	case errors.As(err, &blockErr):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Account is temporarily blocked due to security violations",
			Details: gin.H{
				"blocked_until": blockErr.BlockedUntil.Format(time.RFC3339),
			},
		})

	case errors.As(err, &permErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})

	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})

	case errors.As(err, &ruleErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: ruleErr.Message,
			Details: gin.H{"rule": ruleErr.Rule},
		})

	default:
		utils.GetLogger(c, h.logger).Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
