package registration

import (
	"fmt"
	"strings"
)

// ValidationError carries every rule a submission broke. Nothing was stored
// or published.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistenceError means the user was not created.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist user: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotificationError means the user was created but other services were not
// told about it. The record is not rolled back.
type NotificationError struct {
	UserID string
	Err    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("user %s created but not announced: %v", e.UserID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
