package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicateAttemptNumber is returned when the (user, quiz, attempt_number)
// unique index rejects a new attempt row. Callers recount and retry.
var ErrDuplicateAttemptNumber = errors.New("attempt number already taken")

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
