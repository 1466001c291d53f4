package validator

import (
	"fmt"

	"github.com/jeromwolf/LearnFlow/internal/models"
)

// QuizCreateRequest is the nested payload for creating a quiz with its full
// question and choice tree.
type QuizCreateRequest struct {
	Title        string                  `json:"title" validate:"required,quiz_title"`
	Description  *string                 `json:"description" validate:"omitempty,max=2000"`
	ContentID    *uint                   `json:"content_id"`
	TimeLimit    int                     `json:"time_limit" validate:"time_limit"`
	MaxAttempts  int                     `json:"max_attempts" validate:"max_attempts"`
	PassingScore int                     `json:"passing_score" validate:"passing_score"`
	IsPublished  *bool                   `json:"is_published"`
	Questions    []QuestionUpsertRequest `json:"questions" validate:"dive"`
}

// QuizUpdateRequest patches quiz scalar fields. A non-nil Questions list
// triggers full reconciliation of the question tree.
type QuizUpdateRequest struct {
	Title        *string                 `json:"title" validate:"omitempty,quiz_title"`
	Description  *string                 `json:"description" validate:"omitempty,max=2000"`
	ContentID    *uint                   `json:"content_id"`
	TimeLimit    *int                    `json:"time_limit" validate:"omitempty,time_limit"`
	MaxAttempts  *int                    `json:"max_attempts" validate:"omitempty,max_attempts"`
	PassingScore *int                    `json:"passing_score" validate:"omitempty,passing_score"`
	IsPublished  *bool                   `json:"is_published"`
	Questions    []QuestionUpsertRequest `json:"questions" validate:"omitempty,dive"`
}

// QuestionUpsertRequest is one entry of a nested question list. An ID that
// matches an existing question updates it in place; no ID (or an unknown one)
// inserts a new question.
type QuestionUpsertRequest struct {
	ID          *uint                 `json:"id"`
	Type        models.QuestionType   `json:"question_type" validate:"required,question_type"`
	Text        string                `json:"question_text" validate:"required,min=1,max=2000"`
	Points      int                   `json:"points" validate:"min=0,max=1000"`
	OrderNum    *int                  `json:"order_num"`
	Explanation *string               `json:"explanation" validate:"omitempty,max=2000"`
	Choices     []ChoiceUpsertRequest `json:"choices" validate:"dive"`
}

// ChoiceUpsertRequest is one entry of a nested choice list, matched by ID the
// same way questions are.
type ChoiceUpsertRequest struct {
	ID        *uint  `json:"id"`
	Text      string `json:"choice_text" validate:"required,min=1,max=1000"`
	IsCorrect bool   `json:"is_correct"`
	OrderNum  *int   `json:"order_num"`
}

// ValidateQuizCreate runs struct validation plus cross-field question rules.
func (v *Validator) ValidateQuizCreate(req *QuizCreateRequest) error {
	if err := v.Validate(req); err != nil {
		return err
	}
	if errs := validateQuestionRules(req.Questions); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateQuizUpdate runs struct validation plus cross-field question rules
// when the patch carries a question list.
func (v *Validator) ValidateQuizUpdate(req *QuizUpdateRequest) error {
	if err := v.Validate(req); err != nil {
		return err
	}
	if req.Questions != nil {
		if errs := validateQuestionRules(req.Questions); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// validateQuestionRules checks per-type choice shape rules the struct tags
// cannot express.
func validateQuestionRules(questions []QuestionUpsertRequest) ValidationErrors {
	var errors ValidationErrors

	for i, q := range questions {
		field := fmt.Sprintf("questions[%d]", i)

		switch q.Type {
		case models.MultipleChoice:
			if len(q.Choices) < 2 {
				errors = append(errors, ValidationError{
					Field:   field + ".choices",
					Message: "multiple choice questions need at least 2 choices",
					Value:   len(q.Choices),
					Rule:    "choice_count",
				})
			}
			if countCorrect(q.Choices) == 0 {
				errors = append(errors, ValidationError{
					Field:   field + ".choices",
					Message: "multiple choice questions need at least 1 correct choice",
					Rule:    "correct_choice",
				})
			}
		case models.TrueFalse:
			if len(q.Choices) != 2 {
				errors = append(errors, ValidationError{
					Field:   field + ".choices",
					Message: "true/false questions need exactly 2 choices",
					Value:   len(q.Choices),
					Rule:    "choice_count",
				})
			}
		case models.ShortAnswer, models.Essay:
			if len(q.Choices) > 0 {
				errors = append(errors, ValidationError{
					Field:   field + ".choices",
					Message: "text questions cannot carry choices",
					Value:   len(q.Choices),
					Rule:    "choice_count",
				})
			}
		}
	}

	return errors
}

func countCorrect(choices []ChoiceUpsertRequest) int {
	n := 0
	for _, c := range choices {
		if c.IsCorrect {
			n++
		}
	}
	return n
}
