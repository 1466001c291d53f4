package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeromwolf/LearnFlow/internal/models"
)

const (
	// EventSource identifies this service in published events
	EventSource = "quiz-service"

	// EventVersion is the current event envelope version
	EventVersion = "1.0"
)

// Event types
const (
	EventQuizPublished    = "quiz.published"
	EventQuizUnpublished  = "quiz.unpublished"
	EventAttemptStarted   = "quiz.attempt.started"
	EventAttemptSubmitted = "quiz.attempt.submitted"
	EventAttemptGraded    = "quiz.attempt.graded"
)

// Event is the envelope wrapping every published domain event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope for the given event type and payload.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ===== EVENT PAYLOADS =====

type QuizPublishedEvent struct {
	QuizID    uint   `json:"quiz_id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
	Published bool   `json:"published"`
}

type AttemptStartedEvent struct {
	AttemptID     uint   `json:"attempt_id"`
	QuizID        uint   `json:"quiz_id"`
	UserID        string `json:"user_id"`
	AttemptNumber int    `json:"attempt_number"`
}

type AttemptSubmittedEvent struct {
	AttemptID     uint                 `json:"attempt_id"`
	QuizID        uint                 `json:"quiz_id"`
	UserID        string               `json:"user_id"`
	AttemptNumber int                  `json:"attempt_number"`
	Status        models.AttemptStatus `json:"status"`
	Score         int                  `json:"score"`
	Passed        bool                 `json:"passed"`
}

type AttemptGradedEvent struct {
	AttemptID uint   `json:"attempt_id"`
	QuizID    uint   `json:"quiz_id"`
	UserID    string `json:"user_id"`
	GradedBy  string `json:"graded_by"`
	Score     int    `json:"score"`
	Passed    bool   `json:"passed"`
}
