package services

import (
	"log/slog"
	"testing"

	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

func TestNewPracticeTestService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
	}
	tests := []struct {
		name string
		args args
		want PracticeTestService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewPracticeTestService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator, nil, nil)
		})
	}
}
