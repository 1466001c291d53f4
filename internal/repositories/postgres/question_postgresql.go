package postgres

import (
	"context"
	"fmt"

	"github.com/jeromwolf/LearnFlow/internal/cache"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// Create creates a question with its nested choices
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := q.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	q.invalidateQuiz(ctx, question.QuizID)
	return nil
}

// CreateBatch creates multiple questions in one insert
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := q.getDB(tx).WithContext(ctx).Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}
	q.invalidateQuiz(ctx, questions[0].QuizID)
	return nil
}

// Update updates question scalar fields. Choices are reconciled separately.
func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	err := q.getDB(tx).WithContext(ctx).Model(&models.Question{}).Where("id = ?", question.ID).Updates(map[string]interface{}{
		"type":        question.Type,
		"text":        question.Text,
		"points":      question.Points,
		"order_num":   question.OrderNum,
		"explanation": question.Explanation,
		"updated_at":  question.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	q.invalidateQuiz(ctx, question.QuizID)
	return nil
}

// Delete hard deletes a question; its choices cascade
func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	var question models.Question
	if err := q.getDB(tx).WithContext(ctx).Select("id, quiz_id").First(&question, id).Error; err != nil {
		return fmt.Errorf("failed to get question before delete: %w", err)
	}

	if err := q.getDB(tx).WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	q.invalidateQuiz(ctx, question.QuizID)
	return nil
}

// GetByID retrieves a question with its choices
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := q.getDB(tx).WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_choices.order_num ASC")
		}).
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// GetByIDs retrieves questions with choices by IDs
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []*models.Question
	err := q.getDB(tx).WithContext(ctx).
		Preload("Choices").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// GetByQuiz retrieves all questions of a quiz with choices, in display order
func (q *QuestionPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := q.getDB(tx).WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_choices.order_num ASC")
		}).
		Where("quiz_id = ?", quizID).
		Order("order_num ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by quiz: %w", err)
	}
	return questions, nil
}

// DeleteByQuizExcluding removes every question of the quiz not listed in keepIDs
func (q *QuestionPostgreSQL) DeleteByQuizExcluding(ctx context.Context, tx *gorm.DB, quizID uint, keepIDs []uint) error {
	query := q.getDB(tx).WithContext(ctx).Where("quiz_id = ?", quizID)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	if err := query.Delete(&models.Question{}).Error; err != nil {
		return fmt.Errorf("failed to delete removed questions: %w", err)
	}
	q.invalidateQuiz(ctx, quizID)
	return nil
}

// DeleteChoicesExcluding removes every choice of the question not listed in keepIDs
func (q *QuestionPostgreSQL) DeleteChoicesExcluding(ctx context.Context, tx *gorm.DB, questionID uint, keepIDs []uint) error {
	query := q.getDB(tx).WithContext(ctx).Where("question_id = ?", questionID)
	if len(keepIDs) > 0 {
		query = query.Where("id NOT IN ?", keepIDs)
	}
	if err := query.Delete(&models.Choice{}).Error; err != nil {
		return fmt.Errorf("failed to delete removed choices: %w", err)
	}
	return nil
}

// CreateChoices creates multiple choices in one insert
func (q *QuestionPostgreSQL) CreateChoices(ctx context.Context, tx *gorm.DB, choices []*models.Choice) error {
	if len(choices) == 0 {
		return nil
	}
	if err := q.getDB(tx).WithContext(ctx).Create(&choices).Error; err != nil {
		return fmt.Errorf("failed to create choices: %w", err)
	}
	return nil
}

// UpdateChoice updates one choice
func (q *QuestionPostgreSQL) UpdateChoice(ctx context.Context, tx *gorm.DB, choice *models.Choice) error {
	err := q.getDB(tx).WithContext(ctx).Model(&models.Choice{}).Where("id = ?", choice.ID).Updates(map[string]interface{}{
		"text":       choice.Text,
		"is_correct": choice.IsCorrect,
		"order_num":  choice.OrderNum,
		"updated_at": choice.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update choice: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) invalidateQuiz(ctx context.Context, quizID uint) {
	cache.SafeDelete(ctx, q.cacheManager.Quiz,
		fmt.Sprintf("id:%d", quizID),
		fmt.Sprintf("details:%d", quizID))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Stats, fmt.Sprintf("quiz:%d:*", quizID))
}
