package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

func newAccessFixture() (*accessService, *MockRepository) {
	mockRepo := NewMockRepository()
	service := &accessService{
		repo:   mockRepo,
		logger: slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
	return service, mockRepo
}

func publicStudentTest(id uint) *models.PracticeTest {
	return &models.PracticeTest{
		ID:             id,
		Title:          "Incoterms 2020",
		IsActive:       true,
		ShowInPublic:   true,
		TargetUserType: models.UserTypeStudent,
	}
}

func TestAccessService_CanAccess(t *testing.T) {
	ctx := context.Background()
	student := &models.User{ID: "u1", Role: models.RoleStudent, UserType: models.UserTypeStudent}

	t.Run("batch member is limited to batch assignments", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{7: publicStudentTest(7)}
		mockRepo.user.users = map[string]*models.User{"u1": student}
		mockRepo.batch.batchIDs = []uint{42}

		// Public and matching the user type, but never assigned to batch 42.
		ok, err := service.CanAccess(ctx, "u1", 7)
		if err != nil {
			t.Fatalf("CanAccess() error = %v", err)
		}
		if ok {
			t.Error("batch member granted access to a public test outside their assignments")
		}
	})

	t.Run("batch member can take an assigned test", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		test := publicStudentTest(7)
		test.ShowInPublic = false
		mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{7: test}
		mockRepo.user.users = map[string]*models.User{"u1": student}
		mockRepo.batch.batchIDs = []uint{42}
		mockRepo.batch.assigned = map[uint]bool{7: true}

		ok, err := service.CanAccess(ctx, "u1", 7)
		if err != nil {
			t.Fatalf("CanAccess() error = %v", err)
		}
		if !ok {
			t.Error("batch member denied access to an assigned test")
		}
	})

	t.Run("user without batches falls back to the public catalog", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{7: publicStudentTest(7)}
		mockRepo.user.users = map[string]*models.User{"u1": student}

		ok, err := service.CanAccess(ctx, "u1", 7)
		if err != nil {
			t.Fatalf("CanAccess() error = %v", err)
		}
		if !ok {
			t.Error("user without batches denied a public test for their user type")
		}
	})

	t.Run("public fallback respects the target user type", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		test := publicStudentTest(7)
		test.TargetUserType = models.UserTypeCorporate
		mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{7: test}
		mockRepo.user.users = map[string]*models.User{"u1": student}

		ok, err := service.CanAccess(ctx, "u1", 7)
		if err != nil {
			t.Fatalf("CanAccess() error = %v", err)
		}
		if ok {
			t.Error("student granted access to a corporate-targeted test")
		}
	})

	t.Run("inactive test is never accessible", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		test := publicStudentTest(7)
		test.IsActive = false
		mockRepo.practiceTest.tests = map[uint]*models.PracticeTest{7: test}
		mockRepo.user.users = map[string]*models.User{"u1": student}
		mockRepo.batch.batchIDs = []uint{42}
		mockRepo.batch.assigned = map[uint]bool{7: true}

		ok, err := service.CanAccess(ctx, "u1", 7)
		if err != nil {
			t.Fatalf("CanAccess() error = %v", err)
		}
		if ok {
			t.Error("inactive test granted access")
		}
	})

	t.Run("unknown test", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		mockRepo.user.users = map[string]*models.User{"u1": student}

		_, err := service.CanAccess(ctx, "u1", 404)
		if err != ErrTestNotFound {
			t.Errorf("CanAccess() error = %v, want ErrTestNotFound", err)
		}
	})
}

func TestAccessService_GetAvailableTests_BatchAndPublicNeverMix(t *testing.T) {
	ctx := context.Background()
	student := &models.User{ID: "u1", Role: models.RoleStudent, UserType: models.UserTypeStudent}

	t.Run("batch member sees assignments only", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		assignedTest := &models.PracticeTest{ID: 1, Title: "Assigned", IsActive: true}
		mockRepo.user.users = map[string]*models.User{"u1": student}
		mockRepo.batch.batchIDs = []uint{42}
		mockRepo.practiceTest.assigned = []*models.PracticeTest{assignedTest, assignedTest}
		mockRepo.practiceTest.public = []*models.PracticeTest{publicStudentTest(7)}

		tests, err := service.GetAvailableTests(ctx, "u1")
		if err != nil {
			t.Fatalf("GetAvailableTests() error = %v", err)
		}
		if len(tests) != 1 {
			t.Fatalf("got %d tests, want 1 (assignments only, de-duplicated)", len(tests))
		}
		if tests[0].ID != 1 {
			t.Errorf("got test %d, want the assigned test", tests[0].ID)
		}
	})

	t.Run("user without batches sees the public catalog", func(t *testing.T) {
		service, mockRepo := newAccessFixture()
		mockRepo.user.users = map[string]*models.User{"u1": student}
		mockRepo.practiceTest.public = []*models.PracticeTest{publicStudentTest(7)}

		tests, err := service.GetAvailableTests(ctx, "u1")
		if err != nil {
			t.Fatalf("GetAvailableTests() error = %v", err)
		}
		if len(tests) != 1 || tests[0].ID != 7 {
			t.Fatalf("got %v, want the public test", tests)
		}
	})
}
