package services

import (
	"math"
	"time"

	"gorm.io/datatypes"

	"github.com/iiftl-portal/practice-test-service/internal/models"
	"github.com/iiftl-portal/practice-test-service/internal/validator"
)

func newSnapshotColumn(s models.TestSettingsSnapshot) datatypes.JSONType[models.TestSettingsSnapshot] {
	return datatypes.NewJSONType(s)
}

// ===== QUESTION SELECTION =====

// selectQuestionIndices picks the question subset for a user's next attempt.
// The window rotates through the bank: attempt n starts at
// ((n-1) * perAttempt) mod total and wraps around, so consecutive attempts
// see different questions and the whole bank is covered over time. Selection
// depends only on the completed-attempt count, which makes resumes and
// retries reproducible.
func selectQuestionIndices(totalQuestions, perAttempt, completedAttempts int) []int {
	if totalQuestions <= 0 || perAttempt <= 0 {
		return nil
	}
	if perAttempt > totalQuestions {
		perAttempt = totalQuestions
	}

	offset := (completedAttempts * perAttempt) % totalQuestions
	indices := make([]int, perAttempt)
	for i := 0; i < perAttempt; i++ {
		indices[i] = (offset + i) % totalQuestions
	}
	return indices
}

// buildSettingsSnapshot freezes the marking scheme for the asked questions.
// Correct answers stay out of the snapshot on purpose; grading reads them
// from the live test so an admin can fix a wrong key before submission.
func buildSettingsSnapshot(test *models.PracticeTest, asked []int) models.TestSettingsSnapshot {
	questions := make([]models.QuestionSnapshot, 0, len(asked))
	for _, idx := range asked {
		if idx < 0 || idx >= len(test.Questions) {
			continue
		}
		q := test.Questions[idx]
		questions = append(questions, models.QuestionSnapshot{
			Index:         idx,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
		})
	}

	return models.TestSettingsSnapshot{
		Duration:         test.Duration,
		PassingScore:     test.PassingScore,
		QuestionsPerTest: test.EffectiveQuestionsPerTest(),
		Questions:        questions,
	}
}

// ===== SCORING =====

type scoringResult struct {
	Answers        []models.AttemptAnswer
	CorrectAnswers int
	WrongAnswers   int
	Unanswered     int
	ObtainedMarks  int
	TotalMarks     int
	Score          int
	Passed         bool
}

// scoreAttempt grades a submitted answer sheet.
//
// Marks come from the settings snapshot so a test edit mid-attempt cannot
// change what a question was worth. Correct answers come from the live
// question bank. The percentage score counts only marks earned on correct
// answers against the total possible; negative marking reduces the obtained
// marks figure but never the percentage.
func scoreAttempt(attempt *models.TestAttempt, test *models.PracticeTest, submissions []validator.AnswerSubmission) scoringResult {
	snapshot := attempt.TestSettingsSnapshot.Data()

	// Marking scheme by question index, from the snapshot.
	scheme := make(map[int]models.QuestionSnapshot, len(snapshot.Questions))
	totalMarks := 0
	for _, qs := range snapshot.Questions {
		scheme[qs.Index] = qs
		totalMarks += qs.Marks
	}

	submitted := make(map[int]validator.AnswerSubmission, len(submissions))
	for _, sub := range submissions {
		submitted[sub.QuestionIndex] = sub
	}

	result := scoringResult{
		Answers:    make([]models.AttemptAnswer, 0, len(attempt.QuestionsAsked)),
		TotalMarks: totalMarks,
	}

	correctMarks := 0
	for _, idx := range attempt.QuestionsAsked {
		sub, answered := submitted[idx]
		if !answered || sub.SelectedAnswer == nil {
			result.Unanswered++
			continue
		}

		qs, inScheme := scheme[idx]
		if !inScheme || idx >= len(test.Questions) {
			// Question no longer exists in the live bank; cannot be graded.
			result.Unanswered++
			continue
		}

		answer := models.AttemptAnswer{
			QuestionIndex:  idx,
			SelectedAnswer: *sub.SelectedAnswer,
			TimeSpent:      sub.TimeSpent,
		}

		if *sub.SelectedAnswer == test.Questions[idx].CorrectAnswer {
			answer.IsCorrect = true
			answer.MarksAwarded = qs.Marks
			result.CorrectAnswers++
			correctMarks += qs.Marks
		} else {
			answer.MarksAwarded = -qs.NegativeMarks
			result.WrongAnswers++
		}

		result.ObtainedMarks += answer.MarksAwarded
		result.Answers = append(result.Answers, answer)
	}

	if totalMarks > 0 {
		result.Score = int(math.Round(float64(correctMarks) / float64(totalMarks) * 100))
	}
	result.Passed = result.Score >= snapshot.PassingScore

	return result
}

// ===== COOLDOWN =====

// cooldownUntil returns when the user may start the next attempt, based on
// the last completed one. Zero time means no cooldown applies.
func cooldownUntil(test *models.PracticeTest, lastCompleted *models.TestAttempt) time.Time {
	if !test.EnableCooldown || test.RepeatAfterHours <= 0 || lastCompleted == nil {
		return time.Time{}
	}

	reference := lastCompleted.CompletedAt
	if reference == nil {
		reference = lastCompleted.StartedAt
	}
	if reference == nil {
		return time.Time{}
	}

	return reference.Add(time.Duration(test.RepeatAfterHours) * time.Hour)
}

// ===== RESPONSE MAPPING =====

// questionSheet projects the asked questions for the test taker, stripping
// correct answers.
func questionSheet(test *models.PracticeTest, asked []int) []AttemptQuestion {
	sheet := make([]AttemptQuestion, 0, len(asked))
	for _, idx := range asked {
		if idx < 0 || idx >= len(test.Questions) {
			continue
		}
		q := test.Questions[idx]
		sheet = append(sheet, AttemptQuestion{
			Index:         idx,
			Question:      q.Question,
			Options:       q.Options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
		})
	}
	return sheet
}

func toAttemptResponse(attempt *models.TestAttempt, test *models.PracticeTest, resumed bool, now time.Time) *AttemptResponse {
	remaining := 0
	if attempt.StartedAt != nil {
		if secs := int(attempt.Deadline().Sub(now).Seconds()); secs > 0 {
			remaining = secs
		}
	}

	startedAt := time.Time{}
	if attempt.StartedAt != nil {
		startedAt = *attempt.StartedAt
	}

	return &AttemptResponse{
		ID:             attempt.ID,
		PracticeTestID: attempt.PracticeTestID,
		TestTitle:      attempt.TestTitle,
		Status:         attempt.Status,
		AttemptNumber:  attempt.AttemptsCount,
		StartedAt:      startedAt,
		MaxTime:        attempt.MaxTime,
		TimeRemaining:  remaining,
		TotalQuestions: attempt.TotalQuestions,
		Questions:      questionSheet(test, attempt.QuestionsAsked),
		Resumed:        resumed,
	}
}

func toResultResponse(attempt *models.TestAttempt, test *models.PracticeTest) *ResultResponse {
	snapshot := attempt.TestSettingsSnapshot.Data()

	totalMarks := 0
	for _, qs := range snapshot.Questions {
		totalMarks += qs.Marks
	}

	resp := &ResultResponse{
		AttemptID:      attempt.ID,
		PracticeTestID: attempt.PracticeTestID,
		TestTitle:      attempt.TestTitle,
		Status:         attempt.Status,
		Score:          attempt.Score,
		ObtainedMarks:  attempt.ObtainedMarks,
		TotalMarks:     totalMarks,
		CorrectAnswers: attempt.CorrectAnswers,
		WrongAnswers:   attempt.WrongAnswers,
		Unanswered:     attempt.TotalQuestions - attempt.CorrectAnswers - attempt.WrongAnswers,
		Passed:         attempt.Passed,
		PassingScore:   snapshot.PassingScore,
		TimeTaken:      attempt.TimeTaken,
		CompletedAt:    attempt.CompletedAt,
	}

	if test == nil {
		return resp
	}

	answered := make(map[int]models.AttemptAnswer, len(attempt.Answers))
	for _, ans := range attempt.Answers {
		answered[ans.QuestionIndex] = ans
	}

	for _, idx := range attempt.QuestionsAsked {
		if idx < 0 || idx >= len(test.Questions) {
			continue
		}
		q := test.Questions[idx]
		review := AnswerReview{
			QuestionIndex: idx,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
		if ans, ok := answered[idx]; ok {
			selected := ans.SelectedAnswer
			review.SelectedAnswer = &selected
			review.IsCorrect = ans.IsCorrect
			review.MarksAwarded = ans.MarksAwarded
			review.TimeSpent = ans.TimeSpent
		}
		resp.Answers = append(resp.Answers, review)
	}

	return resp
}

func toAttemptSummary(attempt *models.TestAttempt) *AttemptSummary {
	startedAt := time.Time{}
	if attempt.StartedAt != nil {
		startedAt = *attempt.StartedAt
	}

	return &AttemptSummary{
		ID:             attempt.ID,
		PracticeTestID: attempt.PracticeTestID,
		TestTitle:      attempt.TestTitle,
		Status:         attempt.Status,
		Score:          attempt.Score,
		Passed:         attempt.Passed,
		AttemptNumber:  attempt.AttemptsCount,
		StartedAt:      startedAt,
		CompletedAt:    attempt.CompletedAt,
		TimeTaken:      attempt.TimeTaken,
	}
}
