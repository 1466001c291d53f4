package repositories

import (
	"context"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"gorm.io/gorm"
)

// QuizRepository interface for quiz catalog operations
type QuizRepository interface {
	// Basic CRUD operations. Create persists nested questions and choices in
	// one call via associations.
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters QuizFilters) ([]*models.Quiz, int64, error)
	GetByContent(ctx context.Context, tx *gorm.DB, contentID uint) ([]*models.Quiz, error)

	// Publication state
	SetPublished(ctx context.Context, tx *gorm.DB, id uint, published bool) error

	// Validation and checks
	ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// QuestionRepository interface for question and choice operations within a quiz
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error)

	// Reconciliation helpers. DeleteByQuizExcluding removes every question of
	// the quiz whose ID is not in keepIDs; the choice variant does the same
	// within one question.
	DeleteByQuizExcluding(ctx context.Context, tx *gorm.DB, quizID uint, keepIDs []uint) error
	DeleteChoicesExcluding(ctx context.Context, tx *gorm.DB, questionID uint, keepIDs []uint) error

	// Choice operations
	CreateChoices(ctx context.Context, tx *gorm.DB, choices []*models.Choice) error
	UpdateChoice(ctx context.Context, tx *gorm.DB, choice *models.Choice) error
}
