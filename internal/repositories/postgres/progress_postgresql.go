package postgres

import (
	"context"
	"fmt"

	"github.com/jeromwolf/LearnFlow/internal/cache"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewProgressPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ProgressRepository {
	return &ProgressPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (p *ProgressPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

// Get retrieves the progress row for one user and quiz
func (p *ProgressPostgreSQL) Get(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.UserQuizProgress, error) {
	var progress models.UserQuizProgress
	err := p.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Upsert inserts or replaces the progress row on its composite key
func (p *ProgressPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, progress *models.UserQuizProgress) error {
	err := p.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"completed_attempts", "best_score", "passed", "last_attempt_at", "updated_at",
			}),
		}).
		Create(progress).Error
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	cache.SafeDelete(ctx, p.cacheManager.Progress,
		fmt.Sprintf("user:%s:quiz:%d", progress.UserID, progress.QuizID))
	cache.SafeInvalidatePattern(ctx, p.cacheManager.Progress,
		fmt.Sprintf("user:%s:list*", progress.UserID))

	return nil
}

// GetByUser retrieves a user's progress across all quizzes
func (p *ProgressPostgreSQL) GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserQuizProgress, error) {
	var rows []*models.UserQuizProgress
	err := p.getDB(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("quiz_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get progress by user: %w", err)
	}
	return rows, nil
}

// GetByQuiz retrieves all learners' progress on one quiz
func (p *ProgressPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.UserQuizProgress, error) {
	var rows []*models.UserQuizProgress
	err := p.getDB(tx).WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get progress by quiz: %w", err)
	}
	return rows, nil
}
