package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/events"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
)

// ===== PERMISSION HELPERS =====

// checkAttemptAccess allows the attempt owner, the quiz creator, and admins.
func (s *attemptService) checkAttemptAccess(ctx context.Context, attempt *models.QuizAttempt, userID, action string) error {
	if attempt.UserID == userID {
		return nil
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}
	if role.CanGrade() && quiz.CreatedBy == userID {
		return nil
	}

	return NewPermissionError(userID, attempt.ID, "attempt", action, "not owner or insufficient permissions")
}

// checkQuizOwnership allows the quiz creator and admins.
func (s *attemptService) checkQuizOwnership(ctx context.Context, quizID uint, userID, action string) error {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}
	if role.CanGrade() && quiz.CreatedBy == userID {
		return nil
	}

	return NewPermissionError(userID, quizID, "quiz", action, "not owner or insufficient permissions")
}

func (s *attemptService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// ===== RESPONSE BUILDERS =====

func (s *attemptService) buildAttemptResponse(attempt *models.QuizAttempt) *AttemptResponse {
	return &AttemptResponse{
		QuizAttempt:    attempt,
		CanSubmit:      attempt.Status == models.AttemptInProgress,
		IsPendingGrade: attempt.Status == models.AttemptSubmitted,
	}
}

func (s *attemptService) buildAttemptListResponse(attempts []*models.QuizAttempt, total int64, filters repositories.AttemptFilters) *AttemptListResponse {
	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, s.buildAttemptResponse(attempt))
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Page:     page,
		Size:     len(responses),
	}
}

// ===== EVENT PUBLISHING =====

func (s *attemptService) publishAttemptStarted(ctx context.Context, attempt *models.QuizAttempt) {
	event := events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		UserID:        attempt.UserID,
		AttemptNumber: attempt.AttemptNumber,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt started event", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *attemptService) publishAttemptSubmitted(ctx context.Context, attempt *models.QuizAttempt) {
	event := events.NewEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		UserID:        attempt.UserID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		Score:         attempt.Score,
		Passed:        attempt.Passed,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt submitted event", "attempt_id", attempt.ID, "error", err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
