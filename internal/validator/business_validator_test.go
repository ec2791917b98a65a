package validator

import (
	"strings"
	"testing"

	"github.com/iiftl-portal/practice-test-service/internal/models"
)

func validQuestions(n int) []QuestionRequest {
	questions := make([]QuestionRequest, n)
	for i := range questions {
		questions[i] = QuestionRequest{
			Question:      "Which document proves ownership of goods in transit?",
			Options:       []string{"Bill of Lading", "Commercial Invoice", "Packing List", "Certificate of Origin"},
			CorrectAnswer: 0,
			Marks:         4,
			NegativeMarks: 1,
			Difficulty:    models.DifficultyMedium,
		}
	}
	return questions
}

func validCreateRequest() *PracticeTestCreateRequest {
	return &PracticeTestCreateRequest{
		Title:            "Export Documentation",
		Category:         "documentation",
		Questions:        validQuestions(12),
		QuestionsPerTest: 10,
		Duration:         30,
		PassingScore:     60,
		AllowRepeat:      true,
		RepeatAfterHours: 24,
		TargetUserType:   models.UserTypeStudent,
	}
}

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if strings.Contains(e.Field, field) {
			return true
		}
	}
	return false
}

func TestBusinessValidator_ValidateTestCreate(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name      string
		mutate    func(*PracticeTestCreateRequest)
		wantField string
	}{
		{
			name:   "valid request",
			mutate: func(r *PracticeTestCreateRequest) {},
		},
		{
			name:      "bank smaller than the minimum",
			mutate:    func(r *PracticeTestCreateRequest) { r.Questions = validQuestions(9); r.QuestionsPerTest = 5 },
			wantField: "questions",
		},
		{
			name:      "subset larger than the bank",
			mutate:    func(r *PracticeTestCreateRequest) { r.QuestionsPerTest = 13 },
			wantField: "questions_per_test",
		},
		{
			name:      "duration out of range",
			mutate:    func(r *PracticeTestCreateRequest) { r.Duration = 400 },
			wantField: "duration",
		},
		{
			name:      "passing score over 100",
			mutate:    func(r *PracticeTestCreateRequest) { r.PassingScore = 120 },
			wantField: "passing_score",
		},
		{
			name:      "cooldown enabled without a window",
			mutate:    func(r *PracticeTestCreateRequest) { r.EnableCooldown = true; r.RepeatAfterHours = 0 },
			wantField: "repeat_after_hours",
		},
		{
			name:      "cooldown window over 30 days",
			mutate:    func(r *PracticeTestCreateRequest) { r.RepeatAfterHours = 1000 },
			wantField: "repeat_after_hours",
		},
		{
			name: "negative marks exceed question marks",
			mutate: func(r *PracticeTestCreateRequest) {
				r.Questions[3].NegativeMarks = r.Questions[3].Marks + 1
			},
			wantField: "negative_marks",
		},
		{
			name:      "invalid target user type",
			mutate:    func(r *PracticeTestCreateRequest) { r.TargetUserType = "visitor" },
			wantField: "target_user_type",
		},
		{
			name:      "missing title",
			mutate:    func(r *PracticeTestCreateRequest) { r.Title = "" },
			wantField: "title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			errs := bv.ValidateTestCreate(req)

			if tt.wantField == "" {
				if errs.HasErrors() {
					t.Errorf("ValidateTestCreate() = %v, want no errors", errs)
				}
				return
			}
			if !hasFieldError(errs, tt.wantField) {
				t.Errorf("ValidateTestCreate() = %v, want error on %q", errs, tt.wantField)
			}
		})
	}
}

func TestBusinessValidator_ValidateTestUpdate(t *testing.T) {
	bv := NewBusinessValidator()
	existing := &models.PracticeTest{
		QuestionsPerTest: 10,
		Questions:        make([]models.Question, 12),
	}

	t.Run("subset resize within the stored bank", func(t *testing.T) {
		perTest := 12
		errs := bv.ValidateTestUpdate(&PracticeTestUpdateRequest{QuestionsPerTest: &perTest}, existing)
		if errs.HasErrors() {
			t.Errorf("ValidateTestUpdate() = %v, want no errors", errs)
		}
	})

	t.Run("subset resize beyond the stored bank", func(t *testing.T) {
		perTest := 13
		errs := bv.ValidateTestUpdate(&PracticeTestUpdateRequest{QuestionsPerTest: &perTest}, existing)
		if !hasFieldError(errs, "questions_per_test") {
			t.Errorf("ValidateTestUpdate() = %v, want error on questions_per_test", errs)
		}
	})

	t.Run("replacement bank validated against the payload", func(t *testing.T) {
		errs := bv.ValidateTestUpdate(&PracticeTestUpdateRequest{Questions: validQuestions(10)}, existing)
		if errs.HasErrors() {
			t.Errorf("ValidateTestUpdate() = %v, want no errors", errs)
		}
	})
}

func TestBusinessValidator_ValidateSubmission(t *testing.T) {
	bv := NewBusinessValidator()

	answer := func(idx, selected int) AnswerSubmission {
		return AnswerSubmission{QuestionIndex: idx, SelectedAnswer: &selected}
	}

	tests := []struct {
		name    string
		req     *SubmitAttemptRequest
		total   int
		wantErr bool
	}{
		{
			name: "valid sheet",
			req: &SubmitAttemptRequest{
				Answers: []AnswerSubmission{answer(0, 1), answer(1, 2), {QuestionIndex: 2}},
			},
			total: 4,
		},
		{
			name: "index beyond the sheet",
			req: &SubmitAttemptRequest{
				Answers: []AnswerSubmission{answer(4, 0)},
			},
			total:   4,
			wantErr: true,
		},
		{
			name: "duplicate answer for one question",
			req: &SubmitAttemptRequest{
				Answers: []AnswerSubmission{answer(1, 0), answer(1, 2)},
			},
			total:   4,
			wantErr: true,
		},
		{
			name: "more answers than questions",
			req: &SubmitAttemptRequest{
				Answers: []AnswerSubmission{answer(0, 0), answer(1, 0), answer(2, 0)},
			},
			total:   2,
			wantErr: true,
		},
		{
			name: "selected option out of range",
			req: &SubmitAttemptRequest{
				Answers: []AnswerSubmission{answer(0, 4)},
			},
			total:   4,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateSubmission(tt.req, tt.total)
			if errs.HasErrors() != tt.wantErr {
				t.Errorf("ValidateSubmission() = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestBusinessValidator_ViolationType(t *testing.T) {
	bv := NewBusinessValidator()

	valid := &ViolationReportRequest{Type: models.ViolationTabSwitch}
	if errs := bv.Validate(valid); errs.HasErrors() {
		t.Errorf("Validate() = %v, want no errors", errs)
	}

	invalid := &ViolationReportRequest{Type: "screenshot"}
	if errs := bv.Validate(invalid); !errs.HasErrors() {
		t.Error("Validate() accepted an unknown violation type")
	}
}
