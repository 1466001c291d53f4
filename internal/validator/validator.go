package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jeromwolf/LearnFlow/internal/models"
)

// Validator wraps struct validation with quiz domain rules registered.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerRules()

	return v
}

// Validate validates a struct; a non-nil result is a ValidationErrors value.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

// ValidationError represents one failed field rule
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

func toValidationErrors(err error) ValidationErrors {
	var errors ValidationErrors

	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			errors = append(errors, ValidationError{
				Field:   fe.Field(),
				Message: errorMessage(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
		return errors
	}

	return ValidationErrors{{Message: err.Error(), Rule: "struct"}}
}

// registerRules registers custom quiz domain validators
func (v *Validator) registerRules() {
	// Passing score is a whole percentage
	v.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Max attempts; 0 means unlimited
	v.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 0 && attempts <= 100
	})

	// Time limit in seconds; 0 means unlimited
	v.validate.RegisterValidation("time_limit", func(fl validator.FieldLevel) bool {
		limit := fl.Field().Int()
		return limit >= 0 && limit <= 24*3600
	})

	// Title validation (1-255 characters after trimming)
	v.validate.RegisterValidation("quiz_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 255
	})

	// Question type validation
	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := models.QuestionType(fl.Field().String())
		switch qType {
		case models.MultipleChoice, models.TrueFalse, models.ShortAnswer, models.Essay:
			return true
		}
		return false
	})
}

// errorMessage returns user-friendly error messages
func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "passing_score":
		return "must be between 0 and 100"
	case "max_attempts":
		return "must be between 0 and 100"
	case "time_limit":
		return "must be between 0 and 86400 seconds"
	case "quiz_title":
		return "must be between 1 and 255 characters"
	case "question_type":
		return "must be a valid question type"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
