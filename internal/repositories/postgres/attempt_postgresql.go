package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/cache"
	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Save(attempt).Error
}

func (a *AttemptPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Delete(&models.TestAttempt{}, id).Error
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.TestAttempt
	var total int64

	// apply filters first
	query := db.WithContext(ctx).Model(&models.TestAttempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// GetActiveAttempt returns the single in_progress attempt for a user on a
// test, if any. The partial unique index guarantees at most one exists.
func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND practice_test_id = ? AND status = ?", userID, testID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetLatestCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND practice_test_id = ? AND status = ?", userID, testID, models.AttemptCompleted).
		Order("completed_at DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountCompleted(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("user_id = ? AND practice_test_id = ? AND status = ?", userID, testID, models.AttemptCompleted).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (a *AttemptPostgreSQL) CountAll(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("user_id = ? AND practice_test_id = ?", userID, testID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (a *AttemptPostgreSQL) GetLastAttempt(ctx context.Context, tx *gorm.DB, userID string, testID uint) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND practice_test_id = ?", userID, testID).
		Order("created_at DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetStaleInProgress returns in_progress attempts started before the cutoff,
// oldest first, for the abandonment sweep.
func (a *AttemptPostgreSQL) GetStaleInProgress(ctx context.Context, tx *gorm.DB, olderThan time.Time, limit int) ([]*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.TestAttempt
	query := db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.AttemptInProgress, olderThan).
		Order("started_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// GetPastDeadline returns in_progress attempts whose nominal exam window
// (started_at + max_time seconds) elapsed more than grace ago.
func (a *AttemptPostgreSQL) GetPastDeadline(ctx context.Context, tx *gorm.DB, now time.Time, grace time.Duration, limit int) ([]*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.TestAttempt
	cutoff := now.Add(-grace)
	query := db.WithContext(ctx).
		Where("status = ? AND started_at + (max_time * interval '1 second') < ?", models.AttemptInProgress, cutoff).
		Order("started_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) DeleteByUserAndTest(ctx context.Context, tx *gorm.DB, userID string, testID uint) (int64, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Where("user_id = ? AND practice_test_id = ?", userID, testID).
		Delete(&models.TestAttempt{})
	return result.RowsAffected, result.Error
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, testID uint) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)

	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}

	type statusCount struct {
		Status models.AttemptStatus
		Count  int
	}
	var counts []statusCount
	if err := db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select("status, count(*) as count").
		Where("practice_test_id = ?", testID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count attempts by status: %w", err)
	}

	for _, c := range counts {
		stats.StatusBreakdown[c.Status] = c.Count
		stats.TotalAttempts += c.Count
	}

	type aggregates struct {
		AvgScore     float64
		AvgTimeTaken float64
		PassedCount  int
	}
	var agg aggregates
	if err := db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select("COALESCE(AVG(score), 0) as avg_score, COALESCE(AVG(time_taken), 0) as avg_time_taken, COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0) as passed_count").
		Where("practice_test_id = ? AND status = ?", testID, models.AttemptCompleted).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate attempt stats: %w", err)
	}

	stats.AverageScore = agg.AvgScore
	stats.AverageTimeTaken = int(agg.AvgTimeTaken)

	completed := stats.StatusBreakdown[models.AttemptCompleted]
	if completed > 0 {
		stats.PassRate = float64(agg.PassedCount) / float64(completed) * 100
	}
	if stats.TotalAttempts > 0 {
		stats.CompletionRate = float64(completed) / float64(stats.TotalAttempts) * 100
	}

	return stats, nil
}
