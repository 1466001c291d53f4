package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jeromwolf/LearnFlow/internal/cache"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type QuizPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (q *QuizPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// Create creates a quiz together with its nested questions and choices.
// Missing order_num values default to the element's position.
func (q *QuizPostgreSQL) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	for i := range quiz.Questions {
		if quiz.Questions[i].OrderNum == 0 {
			quiz.Questions[i].OrderNum = i
		}
		for j := range quiz.Questions[i].Choices {
			if quiz.Questions[i].Choices[j].OrderNum == 0 {
				quiz.Questions[i].Choices[j].OrderNum = j
			}
		}
	}

	if err := q.getDB(tx).WithContext(ctx).Create(quiz).Error; err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Quiz, fmt.Sprintf("creator:%s:*", quiz.CreatedBy))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Quiz, "list:*")

	return nil
}

// GetByID retrieves a quiz without its questions, with caching
func (q *QuizPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var quiz models.Quiz

	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		var dbQuiz models.Quiz
		if err := q.getDB(tx).WithContext(ctx).First(&dbQuiz, id).Error; err != nil {
			return nil, err
		}
		return &dbQuiz, nil
	})
	if err != nil {
		return nil, err
	}

	return &quiz, nil
}

// GetByIDWithQuestions retrieves a quiz with questions and choices in display order
func (q *QuizPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	cacheKey := fmt.Sprintf("details:%d", id)
	var quiz models.Quiz

	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizCacheConfig.TTL, func() (interface{}, error) {
		var dbQuiz models.Quiz
		err := q.getDB(tx).WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("quiz_questions.order_num ASC")
			}).
			Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
				return db.Order("quiz_choices.order_num ASC")
			}).
			First(&dbQuiz, id).Error
		if err != nil {
			return nil, err
		}
		return &dbQuiz, nil
	})
	if err != nil {
		return nil, err
	}

	// Cached rows can lose preload ordering after a JSON round trip.
	sortQuizQuestions(&quiz)

	return &quiz, nil
}

// Update updates quiz scalar fields and invalidates cache. Question
// reconciliation goes through QuestionRepository.
func (q *QuizPostgreSQL) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	err := q.getDB(tx).WithContext(ctx).Model(&models.Quiz{}).Where("id = ?", quiz.ID).Updates(map[string]interface{}{
		"title":         quiz.Title,
		"description":   quiz.Description,
		"content_id":    quiz.ContentID,
		"time_limit":    quiz.TimeLimit,
		"max_attempts":  quiz.MaxAttempts,
		"passing_score": quiz.PassingScore,
		"is_published":  quiz.IsPublished,
		"updated_at":    quiz.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update quiz: %w", err)
	}

	cache.InvalidateQuizCache(ctx, q.cacheManager, quiz.ID, quiz.CreatedBy)

	return nil
}

// Delete hard deletes a quiz; questions and choices cascade
func (q *QuizPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	var quiz models.Quiz
	if err := q.getDB(tx).WithContext(ctx).Select("id, created_by").First(&quiz, id).Error; err != nil {
		return fmt.Errorf("failed to get quiz before delete: %w", err)
	}

	if err := q.getDB(tx).WithContext(ctx).Delete(&models.Quiz{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	cache.InvalidateQuizCache(ctx, q.cacheManager, id, quiz.CreatedBy)

	return nil
}

// List retrieves quizzes with filters and pagination
func (q *QuizPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	query := q.getDB(tx).WithContext(ctx).Model(&models.Quiz{})
	query = q.helpers.ApplyQuizFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var quizzes []*models.Quiz
	if err := query.Find(&quizzes).Error; err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

// GetByCreator retrieves quizzes created by a specific user
func (q *QuizPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	filters.CreatedBy = &creatorID
	return q.List(ctx, tx, filters)
}

// GetByContent retrieves all quizzes attached to a content item
func (q *QuizPostgreSQL) GetByContent(ctx context.Context, tx *gorm.DB, contentID uint) ([]*models.Quiz, error) {
	var quizzes []*models.Quiz
	err := q.getDB(tx).WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("created_at ASC").
		Find(&quizzes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes by content: %w", err)
	}
	return quizzes, nil
}

// SetPublished toggles the publication flag
func (q *QuizPostgreSQL) SetPublished(ctx context.Context, tx *gorm.DB, id uint, published bool) error {
	var quiz models.Quiz
	if err := q.getDB(tx).WithContext(ctx).Select("id, created_by").First(&quiz, id).Error; err != nil {
		return err
	}

	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ?", id).
		Update("is_published", published).Error
	if err != nil {
		return fmt.Errorf("failed to update publication state: %w", err)
	}

	cache.InvalidateQuizCache(ctx, q.cacheManager, id, quiz.CreatedBy)

	return nil
}

// ExistsByID checks quiz existence with short-lived caching
func (q *QuizPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	cacheKey := fmt.Sprintf("quiz:%d", id)
	var exists bool

	err := q.cacheManager.Exists.CacheOrExecute(ctx, cacheKey, &exists, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		if err := q.getDB(tx).WithContext(ctx).Model(&models.Quiz{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		return count > 0, nil
	})

	return exists, err
}

// HasAttempts checks whether any attempt exists for the quiz
func (q *QuizPostgreSQL) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count > 0, nil
}

func sortQuizQuestions(quiz *models.Quiz) {
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		return quiz.Questions[i].OrderNum < quiz.Questions[j].OrderNum
	})
	for i := range quiz.Questions {
		choices := quiz.Questions[i].Choices
		sort.SliceStable(choices, func(a, b int) bool {
			return choices[a].OrderNum < choices[b].OrderNum
		})
	}
}
