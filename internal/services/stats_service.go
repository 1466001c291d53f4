package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"gorm.io/gorm"
)

type statsService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewStatsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) StatsService {
	return &statsService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// GetQuizStats aggregates finalized attempts of a quiz into pass rates,
// score averages, and per-question breakdowns.
func (s *statsService) GetQuizStats(ctx context.Context, quizID uint, userID string) (*repositories.QuizStats, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkStatsAccess(ctx, quiz, userID); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().GetFinalizedByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get finalized attempts: %w", err)
	}

	attemptIDs := make([]uint, 0, len(attempts))
	for _, attempt := range attempts {
		attemptIDs = append(attemptIDs, attempt.ID)
	}

	var answers []*models.QuestionAnswer
	if len(attemptIDs) > 0 {
		answers, err = s.repo.Answer().GetByAttempts(ctx, nil, attemptIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get answers: %w", err)
		}
	}

	return computeQuizStats(quiz, attempts, answers), nil
}

func (s *statsService) checkStatsAccess(ctx context.Context, quiz *models.Quiz, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleAdmin {
		return nil
	}
	if user.Role.CanGrade() && quiz.CreatedBy == userID {
		return nil
	}
	return NewPermissionError(userID, quiz.ID, "quiz", "view_stats", "not owner or insufficient permissions")
}

// computeQuizStats is the pure aggregation over already-loaded data.
func computeQuizStats(quiz *models.Quiz, attempts []*models.QuizAttempt, answers []*models.QuestionAnswer) *repositories.QuizStats {
	stats := &repositories.QuizStats{
		QuizID:        quiz.ID,
		TotalAttempts: len(attempts),
	}

	if len(attempts) > 0 {
		scoreSum := 0
		timeSum := 0
		passedCount := 0
		for _, attempt := range attempts {
			scoreSum += attempt.Score
			timeSum += attempt.TimeSpent
			if attempt.Passed {
				passedCount++
			}
		}
		stats.AverageScore = float64(scoreSum) / float64(len(attempts))
		stats.PassRate = float64(passedCount) / float64(len(attempts)) * 100
		stats.AverageTimeSpent = timeSum / len(attempts)
	}

	answersByQuestion := make(map[uint][]*models.QuestionAnswer)
	for _, answer := range answers {
		answersByQuestion[answer.QuestionID] = append(answersByQuestion[answer.QuestionID], answer)
	}

	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		stats.QuestionStats = append(stats.QuestionStats, computeQuestionStats(question, answersByQuestion[question.ID]))
	}

	return stats
}

func computeQuestionStats(question *models.Question, answers []*models.QuestionAnswer) *repositories.QuestionStatEntry {
	entry := &repositories.QuestionStatEntry{
		QuestionID:   question.ID,
		QuestionText: question.Text,
		QuestionType: question.Type,
		TotalAnswers: len(answers),
	}

	// Objective questions get an answer distribution; free-text answers have
	// no meaningful buckets.
	if models.AutoGradeableTypes[question.Type] {
		entry.AnswerDistribution = make(map[string]int)
	}

	if len(answers) == 0 {
		return entry
	}

	pointsSum := 0
	for _, answer := range answers {
		if answer.IsCorrect != nil && *answer.IsCorrect {
			entry.CorrectCount++
		}
		pointsSum += answer.PointsAwarded

		if entry.AnswerDistribution != nil {
			if payload, err := models.DecodeAnswerData(question.Type, answer.AnswerData); err == nil {
				switch {
				case payload.Choice != nil:
					entry.AnswerDistribution[canonicalChoiceKey(payload.Choice.SelectedChoiceIDs)]++
				case payload.Bool != nil:
					entry.AnswerDistribution[strconv.FormatBool(payload.Bool.Answer)]++
				}
			}
		}
	}

	entry.CorrectRate = float64(entry.CorrectCount) / float64(len(answers)) * 100

	// Average per-answer score as a fraction of the question's worth; a
	// zero-point question has no meaningful average.
	if question.Points > 0 {
		entry.AverageScore = float64(pointsSum) / float64(len(answers)) / float64(question.Points) * 100
	}

	return entry
}
