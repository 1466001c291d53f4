package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/cache"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts a new attempt. The (user, quiz, attempt_number) unique index
// turns concurrent starts into ErrDuplicateAttemptNumber so callers can
// recount and retry.
func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	if err := a.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repositories.ErrDuplicateAttemptNumber
		}
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt without answers
func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetByIDWithAnswers retrieves an attempt with its answer rows
func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := a.getDB(tx).WithContext(ctx).
		Preload("Answers").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Update persists mutable attempt fields
func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	err := a.getDB(tx).WithContext(ctx).Model(&models.QuizAttempt{}).Where("id = ?", attempt.ID).Updates(map[string]interface{}{
		"status":       attempt.Status,
		"score":        attempt.Score,
		"passed":       attempt.Passed,
		"time_spent":   attempt.TimeSpent,
		"completed_at": attempt.CompletedAt,
		"updated_at":   attempt.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	return nil
}

// CountByUser counts all attempts of a user on a quiz, regardless of status
func (a *AttemptPostgreSQL) CountByUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int64, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

// GetNextAttemptNumber returns count+1 for the user and quiz
func (a *AttemptPostgreSQL) GetNextAttemptNumber(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int, error) {
	count, err := a.CountByUser(ctx, tx, quizID, userID)
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

// ListByQuiz retrieves attempts for a quiz with filters and pagination
func (a *AttemptPostgreSQL) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	query := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("quiz_id = ?", quizID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.QuizAttempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// ListByUser retrieves attempts of a user across quizzes
func (a *AttemptPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]*models.QuizAttempt, int64, error) {
	query := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("user_id = ?", userID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.QuizAttempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// GetFinalizedByQuiz retrieves completed and graded attempts for statistics
func (a *AttemptPostgreSQL) GetFinalizedByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("quiz_id = ? AND status IN ?", quizID, models.FinalizedStatuses).
		Order("started_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get finalized attempts: %w", err)
	}
	return attempts, nil
}

// Finalize conditionally moves an in_progress attempt to a terminal submit
// status. A lost race leaves the row untouched and returns false.
func (a *AttemptPostgreSQL) Finalize(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus, score int, passed bool, timeSpent int, completedAt time.Time) (bool, error) {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       status,
			"score":        score,
			"passed":       passed,
			"time_spent":   timeSpent,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to finalize attempt: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkGraded applies a manual grading result. Only completed and submitted
// attempts are eligible.
func (a *AttemptPostgreSQL) MarkGraded(ctx context.Context, tx *gorm.DB, id uint, score int, passed bool) (bool, error) {
	result := a.getDB(tx).WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Where("id = ? AND status IN ?", id, models.GradableStatuses).
		Updates(map[string]interface{}{
			"status": models.AttemptGraded,
			"score":  score,
			"passed": passed,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark attempt graded: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetAttemptStats computes the status breakdown and score aggregates for a
// quiz, cached briefly because the dashboard polls it.
func (a *AttemptPostgreSQL) GetAttemptStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	cacheKey := fmt.Sprintf("quiz:%d:attempts", quizID)
	var stats repositories.AttemptStats

	err := a.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		result := &repositories.AttemptStats{
			StatusBreakdown: make(map[models.AttemptStatus]int),
		}

		var rows []struct {
			Status models.AttemptStatus
			Count  int
		}
		err := a.getDB(tx).WithContext(ctx).
			Model(&models.QuizAttempt{}).
			Select("status, COUNT(*) as count").
			Where("quiz_id = ?", quizID).
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get status breakdown: %w", err)
		}

		for _, row := range rows {
			result.StatusBreakdown[row.Status] = row.Count
			result.TotalAttempts += row.Count
		}

		var agg struct {
			AverageScore float64
			PassedCount  int
			Finalized    int
		}
		err = a.getDB(tx).WithContext(ctx).
			Model(&models.QuizAttempt{}).
			Select("COALESCE(AVG(score), 0) as average_score, COUNT(*) FILTER (WHERE passed) as passed_count, COUNT(*) as finalized").
			Where("quiz_id = ? AND status IN ?", quizID, models.FinalizedStatuses).
			Scan(&agg).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get score aggregates: %w", err)
		}

		result.AverageScore = agg.AverageScore
		if agg.Finalized > 0 {
			result.PassRate = float64(agg.PassedCount) / float64(agg.Finalized) * 100
		}

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// ===== ANSWER REPOSITORY =====

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts one answer row
func (a *AnswerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, answer *models.QuestionAnswer) error {
	if err := a.getDB(tx).WithContext(ctx).Create(answer).Error; err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

// CreateBatch inserts the full answer set of a submission in one call
func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuestionAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := a.getDB(tx).WithContext(ctx).Create(&answers).Error; err != nil {
		return fmt.Errorf("failed to create answers: %w", err)
	}
	return nil
}

// Update persists grading fields of one answer
func (a *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.QuestionAnswer) error {
	err := a.getDB(tx).WithContext(ctx).Model(&models.QuestionAnswer{}).Where("id = ?", answer.ID).Updates(map[string]interface{}{
		"is_correct":     answer.IsCorrect,
		"points_awarded": answer.PointsAwarded,
		"feedback":       answer.Feedback,
		"graded_by":      answer.GradedBy,
		"graded_at":      answer.GradedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	return nil
}

// GetByAttempt retrieves all answers of one attempt
func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.QuestionAnswer, error) {
	var answers []*models.QuestionAnswer
	err := a.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// GetByAttempts retrieves answers across multiple attempts for statistics
func (a *AnswerPostgreSQL) GetByAttempts(ctx context.Context, tx *gorm.DB, attemptIDs []uint) ([]*models.QuestionAnswer, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}

	var answers []*models.QuestionAnswer
	err := a.getDB(tx).WithContext(ctx).
		Where("attempt_id IN ?", attemptIDs).
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

// DeleteByAttempt removes all answers of one attempt. Used when a submission
// replaces an earlier answer set.
func (a *AnswerPostgreSQL) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	err := a.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Delete(&models.QuestionAnswer{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	return nil
}

// GetGradingStats counts graded vs pending answers for one attempt
func (a *AnswerPostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB, attemptID uint) (*repositories.GradingStats, error) {
	var stats struct {
		Total  int
		Graded int
	}
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.QuestionAnswer{}).
		Select("COUNT(*) as total, COUNT(is_correct) as graded").
		Where("attempt_id = ?", attemptID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}

	return &repositories.GradingStats{
		TotalAnswers:   stats.Total,
		GradedAnswers:  stats.Graded,
		PendingAnswers: stats.Total - stats.Graded,
	}, nil
}
