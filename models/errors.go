package models

import (
	"errors"
	"fmt"
)

// Per-request failures reported to the routing layer as typed errors. None of
// these are fatal to the process and none are retried internally.
var (
	// ErrNotFound is returned when retracting or touching a post that was
	// never indexed.
	ErrNotFound = errors.New("post not found")

	// ErrEmptySubscription is returned when assembling a feed with no
	// subscribed interests. There is no implicit all-interests fallback.
	ErrEmptySubscription = errors.New("subscription has no interests")

	// ErrInvalidCursor is returned when a cursor does not match the current
	// assembly signature, e.g. the subscription set changed between calls.
	ErrInvalidCursor = errors.New("invalid feed cursor")
)

// ValidationError rejects a post at ingestion when it references an unknown
// interest or publisher, or carries no tags at all.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// NewValidationError builds a ValidationError for the given reference.
func NewValidationError(field, value string) *ValidationError {
	return &ValidationError{Field: field, Value: value}
}
