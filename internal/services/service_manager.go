package services

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/cache"
	"github.com/iiftl-portal/practice-test-service/internal/events"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

// ServiceManager wires all services over one repository and shares the
// validator, cache and event publisher between them.
type ServiceManager struct {
	access       AccessService
	attempt      AttemptService
	violation    ViolationService
	practiceTest PracticeTestService
	importExport ImportExportService
	sweeper      SweeperService
}

func NewServiceManager(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	cacheManager *cache.CacheManager,
	publisher events.Publisher,
	sweepInterval time.Duration,
) *ServiceManager {
	access := NewAccessService(repo, db, logger)

	return &ServiceManager{
		access:       access,
		attempt:      NewAttemptService(repo, db, logger, v, access, cacheManager, publisher),
		violation:    NewViolationService(repo, db, logger, v, cacheManager, publisher),
		practiceTest: NewPracticeTestService(repo, db, logger, v, cacheManager, publisher),
		importExport: NewImportExportService(repo, db, logger, v),
		sweeper:      NewSweeperService(repo, db, logger, publisher, sweepInterval),
	}
}

func (m *ServiceManager) Access() AccessService             { return m.access }
func (m *ServiceManager) Attempt() AttemptService           { return m.attempt }
func (m *ServiceManager) Violation() ViolationService       { return m.violation }
func (m *ServiceManager) PracticeTest() PracticeTestService { return m.practiceTest }
func (m *ServiceManager) ImportExport() ImportExportService { return m.importExport }
func (m *ServiceManager) Sweeper() SweeperService           { return m.sweeper }
