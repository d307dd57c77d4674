// Package validation holds the error type returned for malformed input at
// the write boundary of every domain service.
package validation

import "fmt"

// Error reports a missing or malformed input field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// New returns a validation error for field.
func New(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

// Required returns a validation error for an empty required field.
func Required(field string) *Error {
	return New(field, "is required")
}
