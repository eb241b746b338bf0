/*
errors.go - Centralized error types for the lesson engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Services raise these at the point of detection; the HTTP layer maps them
  to status codes. Nothing inside the engine retries.

ERROR CATEGORIES:
  1. NotFound - lesson/recurrence/student absent or owned by someone else
  2. Validation - empty patch, missing stop date, zero generated lessons, bad input
  3. Persistence - storage failures, surfaced as-is

USAGE:
    if errors.Is(err, schedule.ErrNotFound) {
        // 404
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP responses
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a row is absent or not owned by the caller.
	// Cross-owner access is reported as not found to avoid leaking existence.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when the caller supplied unusable input.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is returned when the store could not read or write.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing row.
type NotFoundError struct {
	Kind string // "lesson", "recurrence", "student"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, message string) error { return &ValidationError{Field: field, Message: message} }

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persistence wraps err unless it is nil or already classified.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing or foreign row.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool { return errors.Is(err, ErrValidation) }
