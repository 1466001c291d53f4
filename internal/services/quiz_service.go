package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeromwolf/LearnFlow/internal/events"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"gorm.io/gorm"
)

type quizService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewQuizService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) QuizService {
	if eventPublisher == nil {
		eventPublisher = events.NewNoopEventPublisher()
	}
	return &quizService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *quizService) Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.ValidateQuizCreate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	role, err := s.getUserRole(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !role.CanGrade() {
		return nil, NewPermissionError(creatorID, 0, "quiz", "create", "insufficient role permissions")
	}

	quiz := buildQuizFromRequest(req, creatorID)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.repo.Quiz().Create(ctx, tx, quiz)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID, "creator_id", creatorID, "questions", len(quiz.Questions))

	return s.buildQuizResponse(quiz, role, creatorID), nil
}

func (s *quizService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuizVisibility(quiz, role, userID, "view"); err != nil {
		return nil, err
	}

	return s.buildQuizResponse(quiz, role, userID), nil
}

func (s *quizService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuizVisibility(quiz, role, userID, "view"); err != nil {
		return nil, err
	}

	// Learners taking the quiz must not see the answer key.
	if !s.canEditQuiz(quiz, role, userID) {
		sanitizeQuizForLearner(quiz)
	}

	return s.buildQuizResponse(quiz, role, userID), nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error) {
	s.logger.Info("Updating quiz", "quiz_id", id, "user_id", userID)

	if err := s.validator.ValidateQuizUpdate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.canEditQuiz(quiz, role, userID) {
		return nil, NewPermissionError(userID, id, "quiz", "update", "not owner or insufficient permissions")
	}

	applyQuizPatch(quiz, req)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Quiz().Update(ctx, tx, quiz); err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}
		if req.Questions != nil {
			if err := s.reconcileQuestions(ctx, tx, quiz.ID, req.Questions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload quiz: %w", err)
	}

	s.logger.Info("Quiz updated", "quiz_id", id, "user_id", userID)

	return s.buildQuizResponse(updated, role, userID), nil
}

func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting quiz", "quiz_id", id, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
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
	if !s.canEditQuiz(quiz, role, userID) {
		return NewPermissionError(userID, id, "quiz", "delete", "not owner or insufficient permissions")
	}

	// Recorded attempts are learner data; only admins may destroy them.
	if role != models.RoleAdmin {
		hasAttempts, err := s.repo.Quiz().HasAttempts(ctx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to check attempts: %w", err)
		}
		if hasAttempts {
			return ErrQuizHasAttempts
		}
	}

	if err := s.repo.Quiz().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.logger.Info("Quiz deleted", "quiz_id", id, "user_id", userID)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *quizService) List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error) {
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Learners only see published quizzes regardless of the filter.
	if !role.CanGrade() {
		published := true
		filters.IsPublished = &published
	}

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	return s.buildQuizListResponse(quizzes, total, filters, role, userID), nil
}

func (s *quizService) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) (*QuizListResponse, error) {
	role, err := s.getUserRole(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	quizzes, total, err := s.repo.Quiz().GetByCreator(ctx, nil, creatorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes by creator: %w", err)
	}

	return s.buildQuizListResponse(quizzes, total, filters, role, creatorID), nil
}

func (s *quizService) GetByContent(ctx context.Context, contentID uint, userID string) ([]*QuizResponse, error) {
	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	quizzes, err := s.repo.Quiz().GetByContent(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes by content: %w", err)
	}

	responses := make([]*QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		if !role.CanGrade() && !quiz.IsPublished {
			continue
		}
		responses = append(responses, s.buildQuizResponse(quiz, role, userID))
	}
	return responses, nil
}

// ===== PUBLICATION STATE =====

func (s *quizService) Publish(ctx context.Context, id uint, userID string) error {
	return s.setPublished(ctx, id, userID, true)
}

func (s *quizService) Unpublish(ctx context.Context, id uint, userID string) error {
	return s.setPublished(ctx, id, userID, false)
}

func (s *quizService) setPublished(ctx context.Context, id uint, userID string, published bool) error {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
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
	if !s.canEditQuiz(quiz, role, userID) {
		return NewPermissionError(userID, id, "quiz", "publish", "not owner or insufficient permissions")
	}

	if quiz.IsPublished == published {
		return nil
	}

	if err := s.repo.Quiz().SetPublished(ctx, nil, id, published); err != nil {
		return fmt.Errorf("failed to set published state: %w", err)
	}

	s.publishQuizStateChanged(ctx, quiz, published)

	s.logger.Info("Quiz publication state changed", "quiz_id", id, "published", published, "user_id", userID)
	return nil
}

// ===== PERMISSION CHECKS =====

func (s *quizService) CanAccess(ctx context.Context, quizID uint, userID string) (bool, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, ErrQuizNotFound
		}
		return false, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return quiz.IsPublished || s.canEditQuiz(quiz, role, userID), nil
}

func (s *quizService) CanEdit(ctx context.Context, quizID uint, userID string) (bool, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, ErrQuizNotFound
		}
		return false, fmt.Errorf("failed to get quiz: %w", err)
	}

	role, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.canEditQuiz(quiz, role, userID), nil
}

func (s *quizService) CanTake(ctx context.Context, quizID uint, userID string) (bool, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, ErrQuizNotFound
		}
		return false, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz.IsPublished, nil
}
