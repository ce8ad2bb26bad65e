package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	// Resources owned by other users are reported the same way, so a caller
	// cannot distinguish "missing" from "not yours".
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an operation conflicts with existing state.
	ErrConflict = errors.New("conflict")
	// ErrInternal is returned on unexpected persistence failures. The whole
	// unit of work is rolled back before it surfaces.
	ErrInternal = errors.New("internal error")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ValidationError against ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ConflictError reports an operation blocked by existing dependent state,
// carrying the number of blocking records.
type ConflictError struct {
	Message    string
	SplitCount int
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ConflictError against ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
