package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"github.com/xuri/excelize/v2"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateQuizRequest = validator.QuizCreateRequest
type UpdateQuizRequest = validator.QuizUpdateRequest
type QuestionUpsertRequest = validator.QuestionUpsertRequest
type ChoiceUpsertRequest = validator.ChoiceUpsertRequest

type QuizResponse struct {
	*models.Quiz
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanTake   bool `json:"can_take"`
}

type QuizListResponse struct {
	Quizzes []*QuizResponse `json:"quizzes"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	QuizID uint `json:"quiz_id" validate:"required"`
}

type SubmitAnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	AnswerData json.RawMessage `json:"answer_data" validate:"required"`
}

type SubmitAttemptRequest struct {
	AttemptID uint                  `json:"attempt_id" validate:"required"`
	Answers   []SubmitAnswerRequest `json:"answers" validate:"dive"`
	TimeSpent *int                  `json:"time_spent" validate:"omitempty,min=0"`

	// AutoGrade defaults to true when nil. When false the attempt lands in
	// submitted status and waits for manual grading.
	AutoGrade *bool `json:"auto_grade"`
}

type AttemptResponse struct {
	*models.QuizAttempt
	CanSubmit      bool `json:"can_submit"`
	IsPendingGrade bool `json:"is_pending_grade"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// ===== GRADING RELATED DTOs =====

// GradeAnswerRequest is a manual grading override for one question of an
// attempt. PointsAwarded is clamped to [0, question.points].
type GradeAnswerRequest struct {
	PointsAwarded int     `json:"points_awarded" validate:"min=0"`
	IsCorrect     *bool   `json:"is_correct"`
	Feedback      *string `json:"feedback" validate:"omitempty,max=2000"`
}

type GradeAttemptRequest struct {
	// Grades is keyed by question ID. Questions without an override keep
	// their current points.
	Grades map[uint]*GradeAnswerRequest `json:"grades" validate:"required,dive"`
}

type GradingResult struct {
	AnswerID      uint      `json:"answer_id"`
	QuestionID    uint      `json:"question_id"`
	PointsAwarded int       `json:"points_awarded"`
	MaxPoints     int       `json:"max_points"`
	IsCorrect     *bool     `json:"is_correct"`
	Feedback      *string   `json:"feedback"`
	GradedAt      time.Time `json:"graded_at"`
	GradedBy      *string   `json:"graded_by"`
}

type AttemptGradingResult struct {
	AttemptID   uint            `json:"attempt_id"`
	TotalPoints int             `json:"total_points"`
	MaxPoints   int             `json:"max_points"`
	Score       int             `json:"score"` // whole percentage 0-100
	Passed      bool            `json:"passed"`
	Questions   []GradingResult `json:"questions"`
	GradedAt    time.Time       `json:"graded_at"`
	GradedBy    string          `json:"graded_by"`
}

// ===== PROGRESS RELATED DTOs =====

type ProgressResponse struct {
	*models.UserQuizProgress
	QuizTitle string `json:"quiz_title,omitempty"`
}

// ===== SERVICE INTERFACES =====

type QuizService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateQuizRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuizRequest, userID string) (*QuizResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.QuizFilters, userID string) (*QuizListResponse, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) (*QuizListResponse, error)
	GetByContent(ctx context.Context, contentID uint, userID string) ([]*QuizResponse, error)

	// Publication state
	Publish(ctx context.Context, id uint, userID string) error
	Unpublish(ctx context.Context, id uint, userID string) error

	// Permission checks
	CanAccess(ctx context.Context, quizID uint, userID string) (bool, error)
	CanEdit(ctx context.Context, quizID uint, userID string) (bool, error)
	CanTake(ctx context.Context, quizID uint, userID string) (bool, error)
}

type AttemptService interface {
	// Core attempt operations
	Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	Submit(ctx context.Context, req *SubmitAttemptRequest, studentID string) (*AttemptResponse, error)

	// Get operations
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetByIDWithAnswers(ctx context.Context, id uint, userID string) (*AttemptResponse, error)

	// List operations
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
	GetByQuiz(ctx context.Context, quizID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)

	// Validation
	CanStart(ctx context.Context, quizID uint, studentID string) (bool, error)
	GetAttemptCount(ctx context.Context, quizID uint, studentID string) (int, error)

	// Statistics
	GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error)
}

type GradingService interface {
	// Manual grading
	GradeAttempt(ctx context.Context, attemptID uint, req *GradeAttemptRequest, graderID string) (*AttemptGradingResult, error)

	// Statistics
	GetGradingOverview(ctx context.Context, attemptID uint, userID string) (*repositories.GradingStats, error)
}

type ProgressService interface {
	GetProgress(ctx context.Context, userID string, quizID uint, requesterID string) (*ProgressResponse, error)
	GetUserProgress(ctx context.Context, userID string, requesterID string) ([]*ProgressResponse, error)
	GetQuizProgress(ctx context.Context, quizID uint, requesterID string) ([]*ProgressResponse, error)
}

type StatsService interface {
	GetQuizStats(ctx context.Context, quizID uint, userID string) (*repositories.QuizStats, error)
}

type ExportService interface {
	// ExportQuizStats renders the quiz statistics workbook: a summary sheet
	// plus one row per question with correctness rates.
	ExportQuizStats(ctx context.Context, quizID uint, userID string) (*excelize.File, error)

	// ExportAttempts renders one row per finalized attempt of the quiz.
	ExportAttempts(ctx context.Context, quizID uint, userID string) (*excelize.File, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Quiz() QuizService
	Attempt() AttemptService
	Grading() GradingService
	Progress() ProgressService
	Stats() StatsService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
