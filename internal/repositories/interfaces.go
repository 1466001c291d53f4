package repositories

import (
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	IsPublished *bool      `json:"is_published"`
	ContentID   *uint      `json:"content_id"`
	CreatedBy   *string    `json:"created_by"`
	DateFrom    *time.Time `json:"date_from"`
	DateTo      *time.Time `json:"date_to"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
	SortBy      string     `json:"sort_by"`    // "created_at", "title"
	SortOrder   string     `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	UserID    *string               `json:"user_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

// QuizStats is the aggregate view over finalized attempts of one quiz.
type QuizStats struct {
	QuizID           uint                 `json:"quiz_id"`
	TotalAttempts    int                  `json:"total_attempts"`
	AverageScore     float64              `json:"average_score"`
	PassRate         float64              `json:"pass_rate"`
	AverageTimeSpent int                  `json:"average_time_spent"`
	QuestionStats    []*QuestionStatEntry `json:"question_stats"`
}

// QuestionStatEntry describes how one question performed across attempts.
type QuestionStatEntry struct {
	QuestionID   uint                `json:"question_id"`
	QuestionText string              `json:"question_text"`
	QuestionType models.QuestionType `json:"question_type"`
	TotalAnswers int                 `json:"total_answers"`
	CorrectCount int                 `json:"correct_count"`
	CorrectRate  float64             `json:"correct_rate"`
	AverageScore float64             `json:"average_score"`

	// AnswerDistribution counts answers by the canonical form of the selected
	// choice set. Only populated for choice-backed question types.
	AnswerDistribution map[string]int `json:"answer_distribution,omitempty"`
}

type AttemptStats struct {
	TotalAttempts   int                          `json:"total_attempts"`
	StatusBreakdown map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore    float64                      `json:"average_score"`
	PassRate        float64                      `json:"pass_rate"`
}

type GradingStats struct {
	TotalAnswers   int `json:"total_answers"`
	GradedAnswers  int `json:"graded_answers"`
	PendingAnswers int `json:"pending_answers"`
}
