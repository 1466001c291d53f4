package services

import (
	"testing"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"gorm.io/datatypes"
)

func statsQuiz() *models.Quiz {
	return &models.Quiz{
		ID:           1,
		PassingScore: 80,
		Questions: []models.Question{
			{
				ID:     1,
				QuizID: 1,
				Type:   models.MultipleChoice,
				Points: 4,
				Choices: []models.Choice{
					{ID: 10, QuestionID: 1, IsCorrect: true},
					{ID: 11, QuestionID: 1, IsCorrect: false},
				},
			},
			{
				ID:     2,
				QuizID: 1,
				Type:   models.Essay,
				Points: 0,
			},
		},
	}
}

func TestComputeQuizStats(t *testing.T) {
	quiz := statsQuiz()

	t.Run("no attempts", func(t *testing.T) {
		stats := computeQuizStats(quiz, nil, nil)
		if stats.TotalAttempts != 0 {
			t.Errorf("TotalAttempts = %d, want 0", stats.TotalAttempts)
		}
		if stats.AverageScore != 0 || stats.PassRate != 0 {
			t.Errorf("empty stats = avg %f pass %f, want zeros", stats.AverageScore, stats.PassRate)
		}
		if len(stats.QuestionStats) != 2 {
			t.Errorf("QuestionStats = %d entries, want one per question", len(stats.QuestionStats))
		}
	})

	t.Run("aggregates over finalized attempts", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			{ID: 1, QuizID: 1, Score: 100, Passed: true, TimeSpent: 60, Status: models.AttemptCompleted},
			{ID: 2, QuizID: 1, Score: 50, Passed: false, TimeSpent: 120, Status: models.AttemptCompleted},
			{ID: 3, QuizID: 1, Score: 90, Passed: true, TimeSpent: 90, Status: models.AttemptGraded},
		}

		stats := computeQuizStats(quiz, attempts, nil)
		if stats.TotalAttempts != 3 {
			t.Errorf("TotalAttempts = %d, want 3", stats.TotalAttempts)
		}
		if stats.AverageScore != 80 {
			t.Errorf("AverageScore = %f, want 80", stats.AverageScore)
		}
		if stats.PassRate < 66.6 || stats.PassRate > 66.7 {
			t.Errorf("PassRate = %f, want ~66.67", stats.PassRate)
		}
		if stats.AverageTimeSpent != 90 {
			t.Errorf("AverageTimeSpent = %d, want 90", stats.AverageTimeSpent)
		}
	})
}

func TestComputeQuestionStats(t *testing.T) {
	quiz := statsQuiz()
	mc := &quiz.Questions[0]

	t.Run("correct rate and distribution", func(t *testing.T) {
		correct := true
		wrong := false
		answers := []*models.QuestionAnswer{
			{QuestionID: 1, IsCorrect: &correct, PointsAwarded: 4, AnswerData: datatypes.JSON(`{"selected_choices":[10]}`)},
			{QuestionID: 1, IsCorrect: &wrong, PointsAwarded: 0, AnswerData: datatypes.JSON(`{"selected_choices":[11]}`)},
			{QuestionID: 1, IsCorrect: &correct, PointsAwarded: 4, AnswerData: datatypes.JSON(`{"selected_choices":[10]}`)},
		}

		entry := computeQuestionStats(mc, answers)
		if entry.TotalAnswers != 3 {
			t.Errorf("TotalAnswers = %d, want 3", entry.TotalAnswers)
		}
		if entry.CorrectCount != 2 {
			t.Errorf("CorrectCount = %d, want 2", entry.CorrectCount)
		}
		if entry.CorrectRate < 66.6 || entry.CorrectRate > 66.7 {
			t.Errorf("CorrectRate = %f, want ~66.67", entry.CorrectRate)
		}
		if entry.AnswerDistribution["[10]"] != 2 || entry.AnswerDistribution["[11]"] != 1 {
			t.Errorf("AnswerDistribution = %v, want [10]:2 [11]:1", entry.AnswerDistribution)
		}
	})

	t.Run("true false answers bucket by submitted value", func(t *testing.T) {
		correct := true
		wrong := false
		tf := &models.Question{ID: 3, QuizID: 1, Type: models.TrueFalse, Points: 2}
		answers := []*models.QuestionAnswer{
			{QuestionID: 3, IsCorrect: &correct, PointsAwarded: 2, AnswerData: datatypes.JSON(`{"answer":true}`)},
			{QuestionID: 3, IsCorrect: &correct, PointsAwarded: 2, AnswerData: datatypes.JSON(`{"answer":true}`)},
			{QuestionID: 3, IsCorrect: &wrong, PointsAwarded: 0, AnswerData: datatypes.JSON(`{"answer":false}`)},
		}

		entry := computeQuestionStats(tf, answers)
		if entry.AnswerDistribution["true"] != 2 || entry.AnswerDistribution["false"] != 1 {
			t.Errorf("AnswerDistribution = %v, want true:2 false:1", entry.AnswerDistribution)
		}
	})

	t.Run("pending manual answers are not correct", func(t *testing.T) {
		essay := &quiz.Questions[1]
		answers := []*models.QuestionAnswer{
			{QuestionID: 2, IsCorrect: nil, PointsAwarded: 0, AnswerData: datatypes.JSON(`{"text":"draft"}`)},
		}

		entry := computeQuestionStats(essay, answers)
		if entry.CorrectCount != 0 {
			t.Errorf("CorrectCount = %d, want 0 for ungraded answers", entry.CorrectCount)
		}
		if entry.AnswerDistribution != nil {
			t.Error("AnswerDistribution should stay nil for free-text questions")
		}
	})

	t.Run("zero point question guards average", func(t *testing.T) {
		essay := &quiz.Questions[1]
		answers := []*models.QuestionAnswer{
			{QuestionID: 2, PointsAwarded: 0, AnswerData: datatypes.JSON(`{"text":"draft"}`)},
		}

		entry := computeQuestionStats(essay, answers)
		if entry.AverageScore != 0 {
			t.Errorf("AverageScore = %f, want 0 for zero-point question", entry.AverageScore)
		}
	})
}
