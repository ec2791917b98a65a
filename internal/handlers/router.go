package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iiftl-portal/practice-test-service/internal/config"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/services"
	"github.com/iiftl-portal/practice-test-service/internal/utils"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

type HandlerManager struct {
	practiceTestHandler *PracticeTestHandler
	attemptHandler      *AttemptHandler
	violationHandler    *ViolationHandler
	authMiddleware      *CasdoorAuthMiddleware
	repo                repositories.Repository
}

func NewHandlerManager(
	serviceManager *services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	repo repositories.Repository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, repo.User())

	return &HandlerManager{
		practiceTestHandler: NewPracticeTestHandler(
			serviceManager.Access(),
			serviceManager.PracticeTest(),
			serviceManager.ImportExport(),
			validator,
			logger,
		),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		violationHandler: NewViolationHandler(serviceManager.Violation(), logger),
		authMiddleware:   authMiddleware,
		repo:             repo,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		tests := v1.Group("/practice-tests")
		{
			tests.GET("/available", hm.practiceTestHandler.GetAvailableTests)
			tests.GET("/attempts", hm.attemptHandler.ListAttempts)
			tests.POST("/:test_id/start", hm.attemptHandler.StartAttempt)

			attempt := tests.Group("/attempt")
			{
				attempt.GET("/:attempt_id", hm.attemptHandler.GetAttempt)
				attempt.DELETE("/:attempt_id", hm.attemptHandler.DeleteAttempt)
				attempt.POST("/:attempt_id/submit", hm.attemptHandler.SubmitAttempt)
				attempt.POST("/:attempt_id/violation", hm.violationHandler.ReportViolation)
			}
		}

		admin := v1.Group("/admin/practice-tests")
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin, models.RoleOwner))
		{
			admin.POST("", hm.practiceTestHandler.CreateTest)
			admin.GET("", hm.practiceTestHandler.ListTests)
			admin.GET("/:id", hm.practiceTestHandler.GetTest)
			admin.PUT("/:id", hm.practiceTestHandler.UpdateTest)
			admin.DELETE("/:id", hm.practiceTestHandler.DeleteTest)

			admin.POST("/:id/assign", hm.practiceTestHandler.AssignToBatch)
			admin.DELETE("/:id/assign/:batch_id", hm.practiceTestHandler.UnassignFromBatch)
			admin.GET("/:id/assignments", hm.practiceTestHandler.GetAssignments)

			admin.GET("/:id/stats", hm.practiceTestHandler.GetStats)
			admin.POST("/:id/reset-cooldown/:user_id", hm.practiceTestHandler.ResetCooldown)
			admin.POST("/:id/reset-usage/:user_id", hm.practiceTestHandler.ResetUsage)

			admin.POST("/:id/import", hm.practiceTestHandler.ImportQuestions)
			admin.GET("/:id/export", hm.practiceTestHandler.ExportQuestions)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "up"
	if err := hm.repo.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "down"
	}

	c.JSON(status, gin.H{
		"service":   "practice-test-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
	})
}
