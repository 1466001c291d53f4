package models

import (
	"time"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// AutoGradeableTypes lists the question types the grading engine can score
// without teacher intervention.
var AutoGradeableTypes = map[QuestionType]bool{
	MultipleChoice: true,
	TrueFalse:      true,
}

type Quiz struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:255" validate:"required,max=255"`
	Description *string `json:"description" gorm:"type:text"`
	ContentID   *uint   `json:"content_id" gorm:"index"` // optional link to a course content item

	// Attempt policy. TimeLimit is in seconds; 0 means unlimited for both
	// TimeLimit and MaxAttempts.
	TimeLimit    int  `json:"time_limit" gorm:"default:0" validate:"min=0"`
	MaxAttempts  int  `json:"max_attempts" gorm:"default:1" validate:"min=0"`
	PassingScore int  `json:"passing_score" gorm:"default:80" validate:"min=0,max=100"`
	IsPublished  bool `json:"is_published" gorm:"default:false;index"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Creator   User       `json:"-" gorm:"foreignKey:CreatedBy"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// MaxPoints returns the sum of points over all questions.
func (q *Quiz) MaxPoints() int {
	total := 0
	for i := range q.Questions {
		total += q.Questions[i].Points
	}
	return total
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Type   QuestionType `json:"question_type" gorm:"not null;index" validate:"required,oneof=multiple_choice true_false short_answer essay"`
	Text   string       `json:"question_text" gorm:"type:text;not null" validate:"required"`
	Points int          `json:"points" gorm:"default:1" validate:"min=0"`

	OrderNum    int     `json:"order_num" gorm:"default:0"`
	Explanation *string `json:"explanation" gorm:"type:text"` // shown after grading

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Choices []Choice `json:"choices" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// CorrectChoiceIDs returns the IDs of all choices flagged correct.
func (q *Question) CorrectChoiceIDs() []uint {
	ids := make([]uint, 0, len(q.Choices))
	for i := range q.Choices {
		if q.Choices[i].IsCorrect {
			ids = append(ids, q.Choices[i].ID)
		}
	}
	return ids
}

type Choice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"choice_text" gorm:"type:text;not null" validate:"required"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	OrderNum   int    `json:"order_num" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Choice) TableName() string {
	return "quiz_choices"
}
