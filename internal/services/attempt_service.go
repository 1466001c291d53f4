package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/events"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// startAttemptRetries bounds how often Start retries after losing an
// attempt-number race to a concurrent Start by the same user.
const startAttemptRetries = 3

type attemptService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) AttemptService {
	if eventPublisher == nil {
		eventPublisher = events.NewNoopEventPublisher()
	}
	return &attemptService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting attempt", "quiz_id", req.QuizID, "student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, req.QuizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if !quiz.IsPublished {
		return nil, ErrQuizNotPublished
	}

	var attempt *models.QuizAttempt

	// The (user, quiz, attempt_number) unique index is the arbiter under
	// concurrent starts; on a conflict we recount and try again.
	for i := 0; i < startAttemptRetries; i++ {
		count, err := s.repo.Attempt().CountByUser(ctx, nil, quiz.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}

		if quiz.MaxAttempts > 0 && count >= int64(quiz.MaxAttempts) {
			return nil, ErrAttemptLimitExceeded
		}

		candidate := &models.QuizAttempt{
			QuizID:        quiz.ID,
			UserID:        studentID,
			AttemptNumber: int(count) + 1,
			Status:        models.AttemptInProgress,
			StartedAt:     time.Now(),
		}

		err = s.repo.Attempt().Create(ctx, nil, candidate)
		if err == nil {
			attempt = candidate
			break
		}
		if !errors.Is(err, repositories.ErrDuplicateAttemptNumber) {
			return nil, fmt.Errorf("failed to create attempt: %w", err)
		}
	}

	if attempt == nil {
		return nil, fmt.Errorf("failed to start attempt after %d retries: %w", startAttemptRetries, repositories.ErrDuplicateAttemptNumber)
	}

	s.publishAttemptStarted(ctx, attempt)

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"student_id", studentID,
		"attempt_number", attempt.AttemptNumber)

	return s.buildAttemptResponse(attempt), nil
}

func (s *attemptService) Submit(ctx context.Context, req *SubmitAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting attempt", "attempt_id", req.AttemptID, "student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, req.AttemptID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != studentID {
		return nil, NewPermissionError(studentID, req.AttemptID, "attempt", "submit", "not owned by student")
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	quiz, err := s.repo.Quiz().GetByIDWithQuestions(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	autoGrade := req.AutoGrade == nil || *req.AutoGrade

	graded, err := s.gradeSubmission(quiz, attempt.ID, req.Answers, autoGrade)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	timeSpent := int(now.Sub(attempt.StartedAt).Seconds())
	if req.TimeSpent != nil {
		timeSpent = *req.TimeSpent
	}

	status := models.AttemptSubmitted
	score := 0
	passed := false
	if autoGrade {
		status = models.AttemptCompleted
		score = computeScore(graded.totalPoints, graded.maxPoints)
		passed = graded.maxPoints > 0 && score >= quiz.PassingScore
	}

	err = s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		// A resubmission race can leave answers from a concurrent submit;
		// replace the set wholesale before finalizing.
		if err := r.Answer().DeleteByAttempt(ctx, nil, attempt.ID); err != nil {
			return fmt.Errorf("failed to clear previous answers: %w", err)
		}
		if len(graded.answers) > 0 {
			if err := r.Answer().CreateBatch(ctx, nil, graded.answers); err != nil {
				return fmt.Errorf("failed to save answers: %w", err)
			}
		}

		ok, err := r.Attempt().Finalize(ctx, nil, attempt.ID, status, score, passed, timeSpent, now)
		if err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}
		if !ok {
			return ErrAttemptNotActive
		}

		// Every submit counts toward learner progress, including submissions
		// awaiting manual grading; grading later refreshes the score only.
		if err := mergeProgress(ctx, nil, r, attempt.UserID, attempt.QuizID, score, passed, now, true); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	attempt.Status = status
	attempt.Score = score
	attempt.Passed = passed
	attempt.TimeSpent = timeSpent
	attempt.CompletedAt = timePtr(now)
	attempt.Answers = nil
	for _, a := range graded.answers {
		attempt.Answers = append(attempt.Answers, *a)
	}

	s.publishAttemptSubmitted(ctx, attempt)

	s.logger.Info("Attempt submitted",
		"attempt_id", attempt.ID,
		"student_id", studentID,
		"status", status,
		"score", score,
		"passed", passed)

	return s.buildAttemptResponse(attempt), nil
}

// ===== GET OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, userID, "view"); err != nil {
		return nil, err
	}

	return s.buildAttemptResponse(attempt), nil
}

func (s *attemptService) GetByIDWithAnswers(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptAccess(ctx, attempt, userID, "view"); err != nil {
		return nil, err
	}

	return s.buildAttemptResponse(attempt), nil
}

// ===== LIST OPERATIONS =====

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	attempts, total, err := s.repo.Attempt().ListByUser(ctx, nil, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return s.buildAttemptListResponse(attempts, total, filters), nil
}

func (s *attemptService) GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	if err := s.checkQuizOwnership(ctx, quizID, userID, "view_attempts"); err != nil {
		return nil, err
	}

	attempts, total, err := s.repo.Attempt().ListByQuiz(ctx, nil, quizID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return s.buildAttemptListResponse(attempts, total, filters), nil
}

// ===== VALIDATION =====

func (s *attemptService) CanStart(ctx context.Context, quizID uint, studentID string) (bool, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, ErrQuizNotFound
		}
		return false, fmt.Errorf("failed to get quiz: %w", err)
	}

	if !quiz.IsPublished {
		return false, nil
	}
	if quiz.MaxAttempts == 0 {
		return true, nil
	}

	count, err := s.repo.Attempt().CountByUser(ctx, nil, quizID, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count < int64(quiz.MaxAttempts), nil
}

func (s *attemptService) GetAttemptCount(ctx context.Context, quizID uint, studentID string) (int, error) {
	count, err := s.repo.Attempt().CountByUser(ctx, nil, quizID, studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return int(count), nil
}

// ===== STATISTICS =====

func (s *attemptService) GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error) {
	if err := s.checkQuizOwnership(ctx, quizID, userID, "view_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetAttemptStats(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// ===== SUBMISSION GRADING =====

type gradedSubmission struct {
	answers     []*models.QuestionAnswer
	totalPoints int
	maxPoints   int
}

// gradeSubmission validates and scores the submitted answer set. Points and
// the maximum accumulate over answered questions only; an unanswered question
// contributes nothing to either side.
func (s *attemptService) gradeSubmission(quiz *models.Quiz, attemptID uint, answers []SubmitAnswerRequest, autoGrade bool) (*gradedSubmission, error) {
	questionsByID := make(map[uint]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questionsByID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	graded := &gradedSubmission{}
	seen := make(map[uint]bool, len(answers))

	for _, req := range answers {
		question, ok := questionsByID[req.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %d does not belong to quiz %d", ErrQuestionNotFound, req.QuestionID, quiz.ID)
		}
		if seen[req.QuestionID] {
			return nil, fmt.Errorf("duplicate answer for question %d", req.QuestionID)
		}
		seen[req.QuestionID] = true

		answer := &models.QuestionAnswer{
			AttemptID:  attemptID,
			QuestionID: req.QuestionID,
			AnswerData: datatypes.JSON(req.AnswerData),
		}

		if autoGrade {
			isCorrect, points, err := autoGradeAnswer(question, answer.AnswerData)
			if err != nil {
				return nil, err
			}
			answer.IsCorrect = isCorrect
			answer.PointsAwarded = points
		} else if _, err := models.DecodeAnswerData(question.Type, answer.AnswerData); err != nil {
			return nil, fmt.Errorf("question %d: %w", question.ID, err)
		}

		graded.answers = append(graded.answers, answer)
		graded.totalPoints += answer.PointsAwarded
		graded.maxPoints += question.Points
	}

	return graded, nil
}
