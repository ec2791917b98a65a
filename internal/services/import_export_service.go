package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/repositories"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

const questionSheetName = "Questions"

var questionSheetHeader = []string{
	"Question", "Option A", "Option B", "Option C", "Option D",
	"Correct Answer", "Marks", "Negative Marks", "Difficulty",
}

type importExportService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
) ImportExportService {
	return &importExportService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ImportQuestions appends questions from an xlsx workbook to a test's bank.
// The workbook must carry a Questions sheet matching the export layout;
// the correct answer column accepts A-D.
func (s *importExportService) ImportQuestions(ctx context.Context, testID uint, userID string, data []byte) (int, error) {
	if err := s.requirePrivileged(ctx, userID, testID, "import_questions"); err != nil {
		return 0, err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrTestNotFound
		}
		return 0, fmt.Errorf("failed to get practice test: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, NewBusinessRuleError("import_format", "file is not a valid xlsx workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(questionSheetName)
	if err != nil {
		return 0, NewBusinessRuleError("import_format", fmt.Sprintf("workbook has no %q sheet", questionSheetName))
	}
	if len(rows) < 2 {
		return 0, NewBusinessRuleError("import_format", "workbook contains no question rows")
	}

	questions := make([]models.Question, 0, len(rows)-1)
	for i, row := range rows[1:] {
		question, err := parseQuestionRow(row)
		if err != nil {
			return 0, NewBusinessRuleError("import_format", fmt.Sprintf("row %d: %v", i+2, err))
		}
		questions = append(questions, question)
	}

	test.Questions = append(test.Questions, questions...)
	test.TotalQuestions = len(test.Questions)

	if err := s.repo.PracticeTest().Update(ctx, s.db, test); err != nil {
		return 0, fmt.Errorf("failed to save imported questions: %w", err)
	}

	s.logger.Info("Questions imported",
		"practice_test_id", testID,
		"imported", len(questions),
		"bank_size", test.TotalQuestions,
		"imported_by", userID)

	return len(questions), nil
}

// ExportQuestions renders a test's question bank as an xlsx workbook.
func (s *importExportService) ExportQuestions(ctx context.Context, testID uint, userID string) ([]byte, string, error) {
	if err := s.requirePrivileged(ctx, userID, testID, "export_questions"); err != nil {
		return nil, "", err
	}

	test, err := s.repo.PracticeTest().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrTestNotFound
		}
		return nil, "", fmt.Errorf("failed to get practice test: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", questionSheetName); err != nil {
		return nil, "", fmt.Errorf("failed to build workbook: %w", err)
	}

	for col, header := range questionSheetHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(questionSheetName, cell, header); err != nil {
			return nil, "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, q := range test.Questions {
		values := []interface{}{
			q.Question,
			optionOrEmpty(q.Options, 0),
			optionOrEmpty(q.Options, 1),
			optionOrEmpty(q.Options, 2),
			optionOrEmpty(q.Options, 3),
			string(rune('A' + q.CorrectAnswer)),
			q.Marks,
			q.NegativeMarks,
			string(q.Difficulty),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(questionSheetName, cell, value); err != nil {
				return nil, "", fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	filename := fmt.Sprintf("practice-test-%d-questions.xlsx", testID)

	s.logger.Info("Questions exported",
		"practice_test_id", testID,
		"questions", len(test.Questions),
		"exported_by", userID)

	return buf.Bytes(), filename, nil
}

func (s *importExportService) requirePrivileged(ctx context.Context, userID string, testID uint, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsPrivileged() {
		return NewPermissionError(userID, testID, "practice_test", action, "insufficient role permissions")
	}
	return nil
}

func parseQuestionRow(row []string) (models.Question, error) {
	get := func(col int) string {
		if col < len(row) {
			return strings.TrimSpace(row[col])
		}
		return ""
	}

	q := models.Question{
		Question: get(0),
		Options:  []string{get(1), get(2), get(3), get(4)},
	}
	if q.Question == "" {
		return q, fmt.Errorf("question text is empty")
	}
	for i, opt := range q.Options {
		if opt == "" {
			return q, fmt.Errorf("option %c is empty", 'A'+i)
		}
	}

	correct := strings.ToUpper(get(5))
	if len(correct) != 1 || correct[0] < 'A' || correct[0] > 'D' {
		return q, fmt.Errorf("correct answer %q must be A, B, C or D", get(5))
	}
	q.CorrectAnswer = int(correct[0] - 'A')

	marks, err := strconv.Atoi(get(6))
	if err != nil || marks <= 0 {
		return q, fmt.Errorf("marks %q must be a positive integer", get(6))
	}
	q.Marks = marks

	if raw := get(7); raw != "" {
		negative, err := strconv.Atoi(raw)
		if err != nil || negative < 0 {
			return q, fmt.Errorf("negative marks %q must be a non-negative integer", raw)
		}
		if negative > marks {
			return q, fmt.Errorf("negative marks cannot exceed marks")
		}
		q.NegativeMarks = negative
	}

	if raw := strings.ToLower(get(8)); raw != "" {
		difficulty := models.DifficultyLevel(raw)
		switch difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			q.Difficulty = difficulty
		default:
			return q, fmt.Errorf("difficulty %q must be easy, medium or hard", raw)
		}
	}

	return q, nil
}

func optionOrEmpty(options []string, idx int) string {
	if idx < len(options) {
		return options[idx]
	}
	return ""
}
