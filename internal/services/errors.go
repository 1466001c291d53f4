package services

import (
	"errors"
	"fmt"

	"github.com/jeromwolf/LearnFlow/internal/validator"
)

// ValidationErrors is re-exported so callers can match validation failures
// without importing the validator package.
type ValidationErrors = validator.ValidationErrors

// ===== SENTINEL ERRORS =====

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrQuizNotPublished is returned when a learner tries to start an attempt
	// on an unpublished quiz.
	ErrQuizNotPublished = errors.New("quiz is not published")

	// ErrAttemptLimitExceeded is returned when the learner has used all allowed
	// attempts for the quiz.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

	// ErrAttemptNotActive is returned when submitting an attempt that is not
	// in progress anymore.
	ErrAttemptNotActive = errors.New("attempt is not in progress")

	// ErrAttemptNotGradable is returned when manual grading targets an attempt
	// that is neither completed nor submitted.
	ErrAttemptNotGradable = errors.New("attempt is not in a gradable status")

	// ErrGradingNotAllowed is returned when a manual grade targets a question
	// the attempt has no answer for.
	ErrGradingNotAllowed = errors.New("question has no answer to grade")

	ErrQuizHasAttempts = errors.New("quiz has recorded attempts")
)

// ===== PERMISSION ERRORS =====

// PermissionError describes a denied action on a specific resource.
type PermissionError struct {
	UserID     string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %v: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPermissionError reports whether err is a permission denial.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
