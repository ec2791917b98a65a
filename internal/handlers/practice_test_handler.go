package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/services"
	"github.com/iiftl-portal/practice-test-service/internal/utils"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

// maxImportSize bounds uploaded workbooks to 10 MiB.
const maxImportSize = 10 << 20

type PracticeTestHandler struct {
	BaseHandler
	accessService       services.AccessService
	practiceTestService services.PracticeTestService
	importExportService services.ImportExportService
	validator           *validator.Validator
}

func NewPracticeTestHandler(
	accessService services.AccessService,
	practiceTestService services.PracticeTestService,
	importExportService services.ImportExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *PracticeTestHandler {
	return &PracticeTestHandler{
		BaseHandler:         NewBaseHandler(logger),
		accessService:       accessService,
		practiceTestService: practiceTestService,
		importExportService: importExportService,
		validator:           validator,
	}
}

// ===== CATALOG =====

// GetAvailableTests lists tests the caller can take
// @Summary List available practice tests
// @Description Returns batch-assigned and public tests with attempt state and cooldown annotations
// @Tags practice-tests
// @Produce json
// @Success 200 {object} SuccessResponse{data=[]services.AvailableTestResponse}
// @Failure 401 {object} ErrorResponse
// @Router /practice-tests/available [get]
func (h *PracticeTestHandler) GetAvailableTests(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		return
	}

	tests, err := h.accessService.GetAvailableTests(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: tests})
}

// ===== ADMIN CRUD =====

// CreateTest creates a practice test
// @Summary Create practice test
// @Tags admin
// @Accept json
// @Produce json
// @Param test body validator.PracticeTestCreateRequest true "Practice test definition"
// @Success 201 {object} models.PracticeTest
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/practice-tests [post]
func (h *PracticeTestHandler) CreateTest(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		return
	}

	var req validator.PracticeTestCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating practice test", "title", req.Title)

	test, err := h.practiceTestService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

// GetTest returns a practice test with its full question bank
// @Summary Get practice test
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Success 200 {object} models.PracticeTest
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id} [get]
func (h *PracticeTestHandler) GetTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	test, err := h.practiceTestService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// ListTests lists practice tests for administration
// @Summary List practice tests
// @Tags admin
// @Produce json
// @Param category query string false "Filter by category"
// @Param is_active query bool false "Filter by active flag"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} PaginatedResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/practice-tests [get]
func (h *PracticeTestHandler) ListTests(c *gin.Context) {
	userID := h.userID(c)
	if userID == "" {
		return
	}

	filters := parseTestFilters(c)

	tests, total, err := h.practiceTestService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:   tests,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// UpdateTest updates a practice test
// @Summary Update practice test
// @Tags admin
// @Accept json
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param test body validator.PracticeTestUpdateRequest true "Fields to update"
// @Success 200 {object} models.PracticeTest
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id} [put]
func (h *PracticeTestHandler) UpdateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	var req validator.PracticeTestUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating practice test", "practice_test_id", id)

	test, err := h.practiceTestService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// DeleteTest soft-deletes a practice test
// @Summary Delete practice test
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id} [delete]
func (h *PracticeTestHandler) DeleteTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	if err := h.practiceTestService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Practice test deleted"})
}

// ===== BATCH ASSIGNMENT =====

// AssignToBatch assigns a test to a batch
// @Summary Assign test to batch
// @Tags admin
// @Accept json
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param assignment body validator.AssignBatchRequest true "Assignment details"
// @Success 201 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/practice-tests/{id}/assign [post]
func (h *PracticeTestHandler) AssignToBatch(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	var req validator.AssignBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.practiceTestService.AssignToBatch(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Test assigned to batch"})
}

// UnassignFromBatch removes a batch assignment
// @Summary Unassign test from batch
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param batch_id path uint true "Batch ID"
// @Success 200 {object} SuccessResponse
// @Router /admin/practice-tests/{id}/assign/{batch_id} [delete]
func (h *PracticeTestHandler) UnassignFromBatch(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	batchID := h.parseIDParam(c, "batch_id")
	if batchID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	if err := h.practiceTestService.UnassignFromBatch(c.Request.Context(), id, batchID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Test unassigned from batch"})
}

// GetAssignments lists batch assignments for a test
// @Summary List batch assignments
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Success 200 {object} SuccessResponse{data=[]models.BatchAssignedTest}
// @Router /admin/practice-tests/{id}/assignments [get]
func (h *PracticeTestHandler) GetAssignments(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	assignments, err := h.practiceTestService.GetAssignments(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: assignments})
}

// ===== STATS AND RESETS =====

// GetStats returns aggregated attempt statistics for a test
// @Summary Get practice test statistics
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Success 200 {object} services.TestStatsResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id}/stats [get]
func (h *PracticeTestHandler) GetStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	stats, err := h.practiceTestService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ResetCooldown clears the retake cooldown for one user
// @Summary Reset cooldown
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param user_id path string true "Target user ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id}/reset-cooldown/{user_id} [post]
func (h *PracticeTestHandler) ResetCooldown(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	targetUserID := c.Param("user_id")
	if targetUserID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid user_id parameter"})
		return
	}

	adminID := h.userID(c)
	if adminID == "" {
		return
	}

	h.LogRequest(c, "Resetting cooldown", "practice_test_id", id, "target_user_id", targetUserID)

	if err := h.practiceTestService.ResetCooldown(c.Request.Context(), id, targetUserID, adminID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Cooldown reset"})
}

// ResetUsage deletes all of one user's attempts on a test
// @Summary Reset usage
// @Tags admin
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param user_id path string true "Target user ID"
// @Success 200 {object} SuccessResponse
// @Router /admin/practice-tests/{id}/reset-usage/{user_id} [post]
func (h *PracticeTestHandler) ResetUsage(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	targetUserID := c.Param("user_id")
	if targetUserID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid user_id parameter"})
		return
	}

	adminID := h.userID(c)
	if adminID == "" {
		return
	}

	h.LogRequest(c, "Resetting usage", "practice_test_id", id, "target_user_id", targetUserID)

	if err := h.practiceTestService.ResetUsage(c.Request.Context(), id, targetUserID, adminID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Usage reset"})
}

// ===== IMPORT / EXPORT =====

// ImportQuestions appends questions from an uploaded xlsx workbook
// @Summary Import questions
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Practice test ID"
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/practice-tests/{id}/import [post]
func (h *PracticeTestHandler) ImportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read uploaded file",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Importing questions", "practice_test_id", id, "size_bytes", len(data))

	imported, err := h.importExportService.ImportQuestions(c.Request.Context(), id, userID, data)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: fmt.Sprintf("Imported %d questions", imported),
		Data:    gin.H{"imported": imported},
	})
}

// ExportQuestions downloads a test's question bank as xlsx
// @Summary Export questions
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Practice test ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /admin/practice-tests/{id}/export [get]
func (h *PracticeTestHandler) ExportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	data, filename, err := h.importExportService.ExportQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func parseTestFilters(c *gin.Context) repositories.PracticeTestFilters {
	filters := repositories.PracticeTestFilters{}

	if raw := c.Query("category"); raw != "" {
		filters.Category = &raw
	}
	if raw := c.Query("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &active
		}
	}
	if raw := c.Query("target_user_type"); raw != "" {
		userType := models.UserType(raw)
		filters.TargetUserType = &userType
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
