package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

type BatchPostgreSQL struct {
	db *gorm.DB
}

func NewBatchPostgreSQL(db *gorm.DB) repositories.BatchRepository {
	return &BatchPostgreSQL{db: db}
}

func (b *BatchPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}

// GetActiveBatchIDsForUser returns ids of active batches the user is an
// active member of. Both the membership and the batch must be active.
func (b *BatchPostgreSQL) GetActiveBatchIDsForUser(ctx context.Context, tx *gorm.DB, userID string) ([]uint, error) {
	db := b.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).
		Model(&models.BatchMembership{}).
		Joins("JOIN batches ON batches.id = batch_memberships.batch_id").
		Where("batch_memberships.user_id = ? AND batch_memberships.is_active = ?", userID, true).
		Where("batches.is_active = ? AND batches.deleted_at IS NULL", true).
		Pluck("batch_memberships.batch_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (b *BatchPostgreSQL) HasActiveAssignment(ctx context.Context, tx *gorm.DB, batchIDs []uint, testID uint) (bool, error) {
	if len(batchIDs) == 0 {
		return false, nil
	}
	db := b.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.BatchAssignedTest{}).
		Where("batch_id IN ? AND practice_test_id = ? AND is_active = ?", batchIDs, testID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (b *BatchPostgreSQL) CreateAssignment(ctx context.Context, tx *gorm.DB, assignment *models.BatchAssignedTest) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Create(assignment).Error
}

func (b *BatchPostgreSQL) DeleteAssignment(ctx context.Context, tx *gorm.DB, batchID, testID uint) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).
		Where("batch_id = ? AND practice_test_id = ?", batchID, testID).
		Delete(&models.BatchAssignedTest{}).Error
}

func (b *BatchPostgreSQL) GetAssignmentsForTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.BatchAssignedTest, error) {
	db := b.getDB(tx)
	var assignments []*models.BatchAssignedTest
	if err := db.WithContext(ctx).
		Where("practice_test_id = ?", testID).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
