package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iiftl-portal/practice-test-service/internal/services"
	"github.com/iiftl-portal/practice-test-service/internal/utils"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

type ViolationHandler struct {
	BaseHandler
	violationService services.ViolationService
}

func NewViolationHandler(
	violationService services.ViolationService,
	logger utils.Logger,
) *ViolationHandler {
	return &ViolationHandler{
		BaseHandler:      NewBaseHandler(logger),
		violationService: violationService,
	}
}

// ReportViolation records a proctoring event against an attempt
// @Summary Report security violation
// @Description Records a tab/window switch or other proctoring event; the third switch terminates the attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Param violation body validator.ViolationReportRequest true "Violation details"
// @Success 200 {object} services.ViolationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /practice-tests/attempt/{attempt_id}/violation [post]
func (h *ViolationHandler) ReportViolation(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	userID := h.userID(c)
	if userID == "" {
		return
	}

	var req validator.ViolationReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Reporting violation", "attempt_id", attemptID, "type", req.Type)

	resp, err := h.violationService.Report(c.Request.Context(), attemptID, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
