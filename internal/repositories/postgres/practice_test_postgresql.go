package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/cache"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

type PracticeTestPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewPracticeTestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.PracticeTestRepository {
	return &PracticeTestPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (p *PracticeTestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

func (p *PracticeTestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Create(test).Error; err != nil {
		return err
	}
	p.invalidate(ctx, test.ID)
	return nil
}

func (p *PracticeTestPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeTest, error) {
	db := p.getDB(tx)
	// Tests change rarely; cache reads on the hot start/submit path.
	cacheKey := fmt.Sprintf("id:%d", id)
	var test models.PracticeTest

	err := p.cacheManager.Test.CacheOrExecute(ctx, cacheKey, &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.PracticeTest
		if err := db.WithContext(ctx).First(&dbTest, id).Error; err != nil {
			return nil, err
		}
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

func (p *PracticeTestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, test *models.PracticeTest) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Save(test).Error; err != nil {
		return err
	}
	p.invalidate(ctx, test.ID)
	return nil
}

func (p *PracticeTestPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.PracticeTest{}, id).Error; err != nil {
		return err
	}
	p.invalidate(ctx, id)
	return nil
}

func (p *PracticeTestPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.PracticeTestFilters) ([]*models.PracticeTest, int64, error) {
	db := p.getDB(tx)
	var tests []*models.PracticeTest
	var total int64

	query := db.WithContext(ctx).Model(&models.PracticeTest{})
	query = p.helpers.ApplyTestFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = p.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, err
	}

	return tests, total, nil
}

// GetAssignedToBatches returns active tests with an active assignment to any
// of the given batches.
func (p *PracticeTestPostgreSQL) GetAssignedToBatches(ctx context.Context, tx *gorm.DB, batchIDs []uint) ([]*models.PracticeTest, error) {
	if len(batchIDs) == 0 {
		return nil, nil
	}
	db := p.getDB(tx)
	var tests []*models.PracticeTest
	if err := db.WithContext(ctx).
		Joins("JOIN batch_assigned_tests ON batch_assigned_tests.practice_test_id = practice_tests.id").
		Where("batch_assigned_tests.batch_id IN ? AND batch_assigned_tests.is_active = ?", batchIDs, true).
		Where("practice_tests.is_active = ?", true).
		Distinct("practice_tests.*").
		Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

func (p *PracticeTestPostgreSQL) GetPublicForUserType(ctx context.Context, tx *gorm.DB, userType models.UserType) ([]*models.PracticeTest, error) {
	db := p.getDB(tx)
	var tests []*models.PracticeTest
	if err := db.WithContext(ctx).
		Where("is_active = ? AND show_in_public = ? AND target_user_type = ?", true, true, userType).
		Order("created_at DESC").
		Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

func (p *PracticeTestPostgreSQL) invalidate(ctx context.Context, id uint) {
	_ = p.cacheManager.InvalidateTest(ctx, id)
}
