package repositories

import (
	"context"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository interface for attempt lifecycle operations
type AttemptRepository interface {
	// Basic CRUD operations. Create returns ErrDuplicateAttemptNumber when the
	// (user, quiz, attempt_number) unique index rejects the row.
	Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error

	// Attempt numbering
	CountByUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int64, error)
	GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int, error)

	// Query operations
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters AttemptFilters) ([]*models.QuizAttempt, int64, error)
	GetFinalizedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizAttempt, error)

	// Finalize moves an in_progress attempt to its terminal submit status. It
	// reports false without error when the attempt was already finalized by a
	// concurrent submit.
	Finalize(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus, score int, passed bool, timeSpent int, completedAt time.Time) (bool, error)

	// MarkGraded applies a manual grading result to a completed or submitted
	// attempt. It reports false when the attempt is not in a gradable status.
	MarkGraded(ctx context.Context, tx *gorm.DB, id uint, score int, passed bool) (bool, error)

	// Statistics
	GetAttemptStats(ctx context.Context, tx *gorm.DB, quizID uint) (*AttemptStats, error)
}

// AnswerRepository interface for per-question answer operations
type AnswerRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, answer *models.QuestionAnswer) error
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuestionAnswer) error
	Update(ctx context.Context, tx *gorm.DB, answer *models.QuestionAnswer) error

	// Query operations
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.QuestionAnswer, error)
	GetByAttempts(ctx context.Context, tx *gorm.DB, attemptIDs []uint) ([]*models.QuestionAnswer, error)

	// Resubmission replaces the previous answer set wholesale.
	DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error

	// Statistics
	GetGradingStats(ctx context.Context, tx *gorm.DB, attemptID uint) (*GradingStats, error)
}

// ProgressRepository interface for the per-learner progress rollup
type ProgressRepository interface {
	Get(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.UserQuizProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, progress *models.UserQuizProgress) error

	GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserQuizProgress, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.UserQuizProgress, error)
}
