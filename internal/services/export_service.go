package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
	stats  StatsService
}

func NewExportService(repo repositories.Repository, logger *slog.Logger, stats StatsService) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
		stats:  stats,
	}
}

const (
	sheetSummary   = "Summary"
	sheetQuestions = "Questions"
	sheetAttempts  = "Attempts"
)

func (s *exportService) ExportQuizStats(ctx context.Context, quizID uint, userID string) (*excelize.File, error) {
	s.logger.Info("Exporting quiz stats", "quiz_id", quizID, "user_id", userID)

	stats, err := s.stats.GetQuizStats(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetSummary)

	summaryRows := [][]interface{}{
		{"Quiz", quiz.Title},
		{"Total Attempts", stats.TotalAttempts},
		{"Average Score", stats.AverageScore},
		{"Pass Rate (%)", stats.PassRate},
		{"Average Time Spent (s)", stats.AverageTimeSpent},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet(sheetQuestions); err != nil {
		return nil, fmt.Errorf("failed to create questions sheet: %w", err)
	}

	header := []interface{}{"Question ID", "Question", "Type", "Answers", "Correct", "Correct Rate (%)", "Average Score (%)"}
	if err := f.SetSheetRow(sheetQuestions, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write questions header: %w", err)
	}

	for i, q := range stats.QuestionStats {
		row := []interface{}{q.QuestionID, q.QuestionText, string(q.QuestionType), q.TotalAnswers, q.CorrectCount, q.CorrectRate, q.AverageScore}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetQuestions, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write question row: %w", err)
		}
	}

	return f, nil
}

func (s *exportService) ExportAttempts(ctx context.Context, quizID uint, userID string) (*excelize.File, error) {
	s.logger.Info("Exporting attempts", "quiz_id", quizID, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkExportAccess(ctx, quiz, userID); err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().GetFinalizedByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetAttempts)

	header := []interface{}{"Attempt ID", "User ID", "Attempt #", "Status", "Score", "Passed", "Time Spent (s)", "Started At", "Completed At"}
	if err := f.SetSheetRow(sheetAttempts, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write attempts header: %w", err)
	}

	for i, attempt := range attempts {
		completedAt := ""
		if attempt.CompletedAt != nil {
			completedAt = attempt.CompletedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			attempt.ID,
			attempt.UserID,
			attempt.AttemptNumber,
			string(attempt.Status),
			attempt.Score,
			attempt.Passed,
			attempt.TimeSpent,
			attempt.StartedAt.Format("2006-01-02 15:04:05"),
			completedAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetAttempts, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write attempt row: %w", err)
		}
	}

	return f, nil
}

func (s *exportService) checkExportAccess(ctx context.Context, quiz *models.Quiz, userID string) error {
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
	return NewPermissionError(userID, quiz.ID, "quiz", "export", "not owner or insufficient permissions")
}
