package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"gorm.io/gorm"
)

type progressService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewProgressService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ProgressService {
	return &progressService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *progressService) GetProgress(ctx context.Context, userID string, quizID uint, requesterID string) (*ProgressResponse, error) {
	if err := s.checkProgressAccess(ctx, userID, requesterID); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().Get(ctx, nil, userID, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			// No finalized attempt yet; report an empty rollup rather than 404.
			return &ProgressResponse{
				UserQuizProgress: &models.UserQuizProgress{UserID: userID, QuizID: quizID},
			}, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return &ProgressResponse{UserQuizProgress: progress}, nil
}

func (s *progressService) GetUserProgress(ctx context.Context, userID string, requesterID string) ([]*ProgressResponse, error) {
	if err := s.checkProgressAccess(ctx, userID, requesterID); err != nil {
		return nil, err
	}

	entries, err := s.repo.Progress().GetByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}

	return s.decorateWithQuizTitles(ctx, entries), nil
}

func (s *progressService) GetQuizProgress(ctx context.Context, quizID uint, requesterID string) ([]*ProgressResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && !(role.CanGrade() && quiz.CreatedBy == requesterID) {
		return nil, NewPermissionError(requesterID, quizID, "quiz", "view_progress", "not owner or insufficient permissions")
	}

	entries, err := s.repo.Progress().GetByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz progress: %w", err)
	}

	responses := make([]*ProgressResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, &ProgressResponse{UserQuizProgress: entry, QuizTitle: quiz.Title})
	}
	return responses, nil
}

// ===== HELPERS =====

// checkProgressAccess allows learners to read their own rollup and grading
// roles to read anyone's.
func (s *progressService) checkProgressAccess(ctx context.Context, userID, requesterID string) error {
	if userID == requesterID {
		return nil
	}
	role, err := s.getUserRole(ctx, requesterID)
	if err != nil {
		return err
	}
	if !role.CanGrade() {
		return NewPermissionError(requesterID, userID, "progress", "view", "insufficient role permissions")
	}
	return nil
}

func (s *progressService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

func (s *progressService) decorateWithQuizTitles(ctx context.Context, entries []*models.UserQuizProgress) []*ProgressResponse {
	responses := make([]*ProgressResponse, 0, len(entries))
	for _, entry := range entries {
		resp := &ProgressResponse{UserQuizProgress: entry}
		if quiz, err := s.repo.Quiz().GetByID(ctx, nil, entry.QuizID); err == nil {
			resp.QuizTitle = quiz.Title
		}
		responses = append(responses, resp)
	}
	return responses
}

// mergeProgress folds one attempt result into the per-learner rollup inside
// the caller's transaction. Best score and pass state only ever improve;
// countAttempt controls whether the attempt counter advances.
func mergeProgress(ctx context.Context, tx *gorm.DB, repo repositories.Repository, userID string, quizID uint, score int, passed bool, at time.Time, countAttempt bool) error {
	progress, err := repo.Progress().Get(ctx, tx, userID, quizID)
	if err != nil {
		if !repositories.IsNotFound(err) {
			return fmt.Errorf("failed to get progress: %w", err)
		}
		progress = &models.UserQuizProgress{UserID: userID, QuizID: quizID}
	}

	progress.Merge(score, passed, at, countAttempt)

	if err := repo.Progress().Upsert(ctx, tx, progress); err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}
