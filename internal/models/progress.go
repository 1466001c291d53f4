package models

import (
	"time"
)

// UserQuizProgress is the per-learner rollup of finalized attempts on a quiz.
// BestScore and Passed only ever improve; re-grading never lowers them.
type UserQuizProgress struct {
	UserID string `json:"user_id" gorm:"primaryKey;size:255"`
	QuizID uint   `json:"quiz_id" gorm:"primaryKey"`

	CompletedAttempts int        `json:"completed_attempts" gorm:"default:0"`
	BestScore         int        `json:"best_score" gorm:"default:0"`
	Passed            bool       `json:"passed" gorm:"default:false"`
	LastAttemptAt     *time.Time `json:"last_attempt_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserQuizProgress) TableName() string {
	return "user_quiz_progress"
}

// Merge folds an attempt result into the progress row, keeping best-so-far
// semantics. countAttempt is false when re-grading an already counted attempt.
func (p *UserQuizProgress) Merge(score int, passed bool, at time.Time, countAttempt bool) {
	if countAttempt {
		p.CompletedAttempts++
		p.LastAttemptAt = &at
	}
	if score > p.BestScore {
		p.BestScore = score
	}
	p.Passed = p.Passed || passed
}
