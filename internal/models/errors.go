package models

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the referenced room or message does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized indicates the principal may not perform the operation,
// e.g. editing a message it did not send.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError rejects malformed or oversized input before any state
// change. It is reported to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
