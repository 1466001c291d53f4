package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/events"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"gorm.io/gorm"
)

type gradingService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) GradingService {
	if eventPublisher == nil {
		eventPublisher = events.NewNoopEventPublisher()
	}
	return &gradingService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// GradeAttempt applies manual grading overrides to a completed or submitted
// attempt and recomputes its score. Questions without an override keep their
// auto-graded points.
func (s *gradingService) GradeAttempt(ctx context.Context, attemptID uint, req *GradeAttemptRequest, graderID string) (*AttemptGradingResult, error) {
	s.logger.Info("Grading attempt", "attempt_id", attemptID, "grader_id", graderID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, attempt.QuizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkGradingPermission(ctx, graderID, quiz); err != nil {
		return nil, err
	}

	gradable := false
	for _, st := range models.GradableStatuses {
		if attempt.Status == st {
			gradable = true
			break
		}
	}
	if !gradable {
		return nil, ErrAttemptNotGradable
	}

	questionsByID := make(map[uint]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questionsByID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	answered := make(map[uint]bool, len(attempt.Answers))
	for i := range attempt.Answers {
		answered[attempt.Answers[i].QuestionID] = true
	}
	for questionID := range req.Grades {
		if !answered[questionID] {
			return nil, fmt.Errorf("%w: question %d", ErrGradingNotAllowed, questionID)
		}
	}

	now := time.Now()
	result := &AttemptGradingResult{
		AttemptID: attemptID,
		GradedAt:  now,
		GradedBy:  graderID,
	}

	err = s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		totalPoints := 0
		maxPoints := 0

		for i := range attempt.Answers {
			answer := &attempt.Answers[i]
			question, ok := questionsByID[answer.QuestionID]
			if !ok {
				// Question removed after the attempt; skip its answer.
				continue
			}

			if grade, ok := req.Grades[answer.QuestionID]; ok {
				answer.PointsAwarded = clampPoints(grade.PointsAwarded, question.Points)
				answer.IsCorrect = grade.IsCorrect
				answer.Feedback = grade.Feedback
				answer.GradedBy = &graderID
				answer.GradedAt = &now

				if err := r.Answer().Update(ctx, nil, answer); err != nil {
					return fmt.Errorf("failed to update answer %d: %w", answer.ID, err)
				}
			}

			totalPoints += answer.PointsAwarded
			maxPoints += question.Points

			result.Questions = append(result.Questions, GradingResult{
				AnswerID:      answer.ID,
				QuestionID:    answer.QuestionID,
				PointsAwarded: answer.PointsAwarded,
				MaxPoints:     question.Points,
				IsCorrect:     answer.IsCorrect,
				Feedback:      answer.Feedback,
				GradedAt:      now,
				GradedBy:      answer.GradedBy,
			})
		}

		// When every graded question was removed from the quiz the attempt
		// keeps its previous result instead of collapsing to zero.
		score := attempt.Score
		passed := attempt.Passed
		if maxPoints > 0 {
			score = computeScore(totalPoints, maxPoints)
			passed = score >= quiz.PassingScore
		}

		ok, err := r.Attempt().MarkGraded(ctx, nil, attemptID, score, passed)
		if err != nil {
			return fmt.Errorf("failed to mark attempt graded: %w", err)
		}
		if !ok {
			return ErrAttemptNotGradable
		}

		// Manual grading refreshes best score and pass state but does not
		// count a new attempt; the submit already counted it.
		if err := mergeProgress(ctx, nil, r, attempt.UserID, attempt.QuizID, score, passed, now, false); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}

		result.TotalPoints = totalPoints
		result.MaxPoints = maxPoints
		result.Score = score
		result.Passed = passed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAttemptGraded(ctx, attempt, graderID, result.Score, result.Passed)

	s.logger.Info("Attempt graded",
		"attempt_id", attemptID,
		"grader_id", graderID,
		"score", result.Score,
		"passed", result.Passed)

	return result, nil
}

func (s *gradingService) GetGradingOverview(ctx context.Context, attemptID uint, userID string) (*repositories.GradingStats, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkGradingPermission(ctx, userID, quiz); err != nil {
		return nil, err
	}

	stats, err := s.repo.Answer().GetGradingStats(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}

func (s *gradingService) publishAttemptGraded(ctx context.Context, attempt *models.QuizAttempt, graderID string, score int, passed bool) {
	event := events.NewEvent(events.EventAttemptGraded, events.AttemptGradedEvent{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		UserID:    attempt.UserID,
		GradedBy:  graderID,
		Score:     score,
		Passed:    passed,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt graded event", "attempt_id", attempt.ID, "error", err)
	}
}
