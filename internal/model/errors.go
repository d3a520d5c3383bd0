package model

import (
	"errors"
	"fmt"
)

// Resource kinds used in error messages.
const (
	KindEntry        = "configuration entry"
	KindSubscription = "configuration subscription"
)

// ConflictError reports a write that would violate a uniqueness invariant.
type ConflictError struct {
	Kind string
	Key  fmt.Stringer
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

// NotFoundError reports a missing row.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// IsConflict reports whether err wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
