package validator

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateTestCreate validates practice test creation business rules
func (bv *BusinessValidator) ValidateTestCreate(req *PracticeTestCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateQuestionBank(req.Questions, req.QuestionsPerTest)...)

	if req.AllowRepeat && req.EnableCooldown && req.RepeatAfterHours == 0 {
		errors = append(errors, ValidationError{
			Field:   "repeat_after_hours",
			Message: "is required when cooldown is enabled",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateTestUpdate validates practice test update business rules
func (bv *BusinessValidator) ValidateTestUpdate(req *PracticeTestUpdateRequest, existing *models.PracticeTest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	// Question bank checks run against the payload when provided, otherwise
	// against the stored bank when only the subset size changes.
	if req.Questions != nil {
		perTest := existing.QuestionsPerTest
		if req.QuestionsPerTest != nil {
			perTest = *req.QuestionsPerTest
		}
		errors = append(errors, bv.validateQuestionBank(req.Questions, perTest)...)
	} else if req.QuestionsPerTest != nil && *req.QuestionsPerTest > len(existing.Questions) {
		errors = append(errors, ValidationError{
			Field:   "questions_per_test",
			Message: fmt.Sprintf("cannot exceed question bank size of %d", len(existing.Questions)),
			Value:   *req.QuestionsPerTest,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateSubmission validates an answer sheet against the attempt it answers
func (bv *BusinessValidator) ValidateSubmission(req *SubmitAttemptRequest, totalQuestions int) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if len(req.Answers) > totalQuestions {
		errors = append(errors, ValidationError{
			Field:   "answers",
			Message: fmt.Sprintf("cannot answer more than %d questions", totalQuestions),
			Value:   len(req.Answers),
			Rule:    "business_logic",
		})
	}

	seen := make(map[int]bool, len(req.Answers))
	for i, answer := range req.Answers {
		if answer.QuestionIndex >= totalQuestions {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_index", i),
				Message: fmt.Sprintf("must be less than %d", totalQuestions),
				Value:   answer.QuestionIndex,
				Rule:    "business_logic",
			})
		}
		if seen[answer.QuestionIndex] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_index", i),
				Message: "is answered more than once",
				Value:   answer.QuestionIndex,
				Rule:    "business_logic",
			})
		}
		seen[answer.QuestionIndex] = true
	}

	return errors
}

// validateQuestionBank validates a question payload as a whole
func (bv *BusinessValidator) validateQuestionBank(questions []QuestionRequest, perTest int) ValidationErrors {
	var errors ValidationErrors

	if len(questions) < models.MinQuestionsPerTest {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: fmt.Sprintf("must contain at least %d questions", models.MinQuestionsPerTest),
			Value:   len(questions),
			Rule:    "business_logic",
		})
	}

	if perTest > len(questions) {
		errors = append(errors, ValidationError{
			Field:   "questions_per_test",
			Message: fmt.Sprintf("cannot exceed question bank size of %d", len(questions)),
			Value:   perTest,
			Rule:    "business_logic",
		})
	}

	for i, q := range questions {
		if q.NegativeMarks > q.Marks {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("questions[%d].negative_marks", i),
				Message: "cannot exceed marks for the question",
				Value:   q.NegativeMarks,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Test duration validation (5-300 minutes)
	bv.validate.RegisterValidation("test_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Passing score validation (0-100)
	bv.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Cooldown window validation (1 hour to 30 days)
	bv.validate.RegisterValidation("repeat_after_hours", func(fl validator.FieldLevel) bool {
		hours := fl.Field().Int()
		return hours >= 1 && hours <= 720
	})

	// Title validation (1-200 characters)
	bv.validate.RegisterValidation("test_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Due date validation (must be in future)
	bv.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()

		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true // Optional field
		}

		var dueDate time.Time
		if field.Kind() == reflect.Ptr {
			dueDate = field.Elem().Interface().(time.Time)
		} else {
			dueDate = field.Interface().(time.Time)
		}

		return dueDate.After(time.Now())
	})

	// difficulty level validation
	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		level := fl.Field().String()
		validLevels := []models.DifficultyLevel{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
		for _, vl := range validLevels {
			if models.DifficultyLevel(level) == vl {
				return true
			}
		}
		return false
	})

	// target user type validation
	bv.validate.RegisterValidation("target_user_type", func(fl validator.FieldLevel) bool {
		userType := fl.Field().String()
		validTypes := []models.UserType{models.UserTypeStudent, models.UserTypeCorporate, models.UserTypeGovernment}
		for _, vt := range validTypes {
			if models.UserType(userType) == vt {
				return true
			}
		}
		return false
	})

	// violation type validation
	bv.validate.RegisterValidation("violation_type", func(fl validator.FieldLevel) bool {
		vType := fl.Field().String()
		validTypes := []models.ViolationType{
			models.ViolationTabSwitch,
			models.ViolationWindowSwitch,
			models.ViolationCopyAttempt,
			models.ViolationRightClick,
		}
		for _, vt := range validTypes {
			if models.ViolationType(vType) == vt {
				return true
			}
		}
		return false
	})
}
