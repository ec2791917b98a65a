package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/services"
	"github.com/iiftl-portal/practice-test-service/internal/utils"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts or resumes a practice test attempt
// @Summary Start practice test attempt
// @Description Starts a new attempt, or resumes the in-progress one if it exists
// @Tags attempts
// @Produce json
// @Param test_id path uint true "Practice test ID"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /practice-tests/{test_id}/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "test_id")
	if testID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	h.LogRequest(c, "Starting practice test attempt", "practice_test_id", testID)

	attempt, err := h.attemptService.Start(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetAttempt returns an attempt: the live question sheet while in progress,
// the scored result afterwards
// @Summary Get attempt
// @Description Returns the question sheet for an in-progress attempt or the result for a finished one
// @Tags attempts
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} services.ResultResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /practice-tests/attempt/{attempt_id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	active, err := h.attemptService.GetActive(c.Request.Context(), attemptID, userID)
	if err == nil {
		c.JSON(http.StatusOK, active)
		return
	}
	if !errors.Is(err, services.ErrAttemptNotActive) {
		h.handleServiceError(c, err)
		return
	}

	result, err := h.attemptService.GetByID(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAttempts returns the caller's attempt history
// @Summary List attempts
// @Description Returns the authenticated user's attempt history, newest first
// @Tags attempts
// @Produce json
// @Param status query string false "Filter by status"
// @Param practice_test_id query uint false "Filter by practice test"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} PaginatedResponse
// @Failure 401 {object} ErrorResponse
// @Router /practice-tests/attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		return
	}

	filters := parseAttemptFilters(c)

	attempts, total, err := h.attemptService.List(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:   attempts,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// SubmitAttempt submits answers and returns the scored result
// @Summary Submit attempt
// @Description Grades the submitted answer sheet and completes the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Param submission body validator.SubmitAttemptRequest true "Answer sheet"
// @Success 200 {object} services.ResultResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /practice-tests/attempt/{attempt_id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	var req validator.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// DeleteAttempt removes an attempt from the caller's history
// @Summary Delete attempt
// @Description Deletes the attempt regardless of its status
// @Tags attempts
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /practice-tests/attempt/{attempt_id} [delete]
func (h *AttemptHandler) DeleteAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	if err := h.attemptService.Delete(c.Request.Context(), attemptID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{}

	if raw := c.Query("status"); raw != "" {
		status := models.AttemptStatus(raw)
		filters.Status = &status
	}
	if raw := c.Query("practice_test_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			testID := uint(id)
			filters.PracticeTestID = &testID
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filters.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	return filters
}
