package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
)

type ViolationPostgreSQL struct {
	db *gorm.DB
}

func NewViolationPostgreSQL(db *gorm.DB) repositories.ViolationRepository {
	return &ViolationPostgreSQL{db: db}
}

func (v *ViolationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return v.db
}

func (v *ViolationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, violation *models.SecurityViolation) error {
	db := v.getDB(tx)
	return db.WithContext(ctx).Create(violation).Error
}

// CountSwitchViolations counts tab/window-switch events for an attempt.
// Only these types feed the three-strike interlock.
func (v *ViolationPostgreSQL) CountSwitchViolations(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	db := v.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.SecurityViolation{}).
		Where("test_attempt_id = ? AND type IN ?", attemptID,
			[]models.ViolationType{models.ViolationTabSwitch, models.ViolationWindowSwitch}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (v *ViolationPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.SecurityViolation, error) {
	db := v.getDB(tx)
	var violations []*models.SecurityViolation
	if err := db.WithContext(ctx).
		Where("test_attempt_id = ?", attemptID).
		Order("created_at ASC").
		Find(&violations).Error; err != nil {
		return nil, err
	}
	return violations, nil
}
