package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed" // fully auto-graded on submit
	AttemptSubmitted  AttemptStatus = "submitted" // awaiting manual grading
	AttemptGraded     AttemptStatus = "graded"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// FinalizedStatuses are the statuses that count toward quiz statistics and
// learner progress.
var FinalizedStatuses = []AttemptStatus{AttemptCompleted, AttemptGraded}

// GradableStatuses are the statuses a teacher may apply manual grading to.
var GradableStatuses = []AttemptStatus{AttemptCompleted, AttemptSubmitted}

type QuizAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QuizID        uint          `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_user_quiz_attempt"`
	UserID        string        `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_user_quiz_attempt"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_user_quiz_attempt"`
	Status        AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Scoring. Score is a whole percentage 0-100.
	Score  int  `json:"score" gorm:"default:0"`
	Passed bool `json:"passed" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz    Quiz             `json:"-" gorm:"foreignKey:QuizID"`
	User    User             `json:"-" gorm:"foreignKey:UserID"`
	Answers []QuestionAnswer `json:"answers" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// IsFinalized reports whether the attempt counts toward progress and stats.
func (a *QuizAttempt) IsFinalized() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptGraded
}

type QuestionAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`

	// Raw answer payload; shape depends on the question type. Use
	// DecodeAnswerData before interpreting it.
	AnswerData datatypes.JSON `json:"answer_data" gorm:"type:jsonb"`

	// Grading
	IsCorrect     *bool      `json:"is_correct"` // nil while ungraded (essay/short answer)
	PointsAwarded int        `json:"points_awarded" gorm:"default:0"`
	Feedback      *string    `json:"feedback" gorm:"type:text"`
	GradedBy      *string    `json:"graded_by" gorm:"size:255"`
	GradedAt      *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  QuizAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question    `json:"-" gorm:"foreignKey:QuestionID"`
}

func (QuestionAnswer) TableName() string {
	return "quiz_question_answers"
}

// ===== ANSWER PAYLOAD SCHEMAS =====

// ChoiceAnswerData is the payload for multiple_choice questions.
type ChoiceAnswerData struct {
	SelectedChoiceIDs []uint `json:"selected_choices"`
}

// BoolAnswerData is the payload for true_false questions.
type BoolAnswerData struct {
	Answer bool `json:"answer"`
}

// TextAnswerData is the payload for short_answer and essay questions.
type TextAnswerData struct {
	Text string `json:"text"`
}

// AnswerPayload is the decoded form of QuestionAnswer.AnswerData. Exactly one
// field is set, matching the question type it was decoded against.
type AnswerPayload struct {
	Choice *ChoiceAnswerData
	Bool   *BoolAnswerData
	Text   *TextAnswerData
}

// DecodeAnswerData parses raw answer data against the question type. Malformed
// payloads return an error instead of silently scoring as wrong.
func DecodeAnswerData(qt QuestionType, raw datatypes.JSON) (AnswerPayload, error) {
	if len(raw) == 0 {
		return AnswerPayload{}, fmt.Errorf("answer data is empty")
	}

	switch qt {
	case MultipleChoice:
		var data ChoiceAnswerData
		if err := json.Unmarshal(raw, &data); err != nil {
			return AnswerPayload{}, fmt.Errorf("invalid multiple choice answer: %w", err)
		}
		return AnswerPayload{Choice: &data}, nil
	case TrueFalse:
		var data BoolAnswerData
		if err := json.Unmarshal(raw, &data); err != nil {
			return AnswerPayload{}, fmt.Errorf("invalid true/false answer: %w", err)
		}
		return AnswerPayload{Bool: &data}, nil
	case ShortAnswer, Essay:
		var data TextAnswerData
		if err := json.Unmarshal(raw, &data); err != nil {
			return AnswerPayload{}, fmt.Errorf("invalid text answer: %w", err)
		}
		return AnswerPayload{Text: &data}, nil
	default:
		return AnswerPayload{}, fmt.Errorf("unknown question type %q", qt)
	}
}
