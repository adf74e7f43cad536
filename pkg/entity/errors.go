package entity

import (
	"fmt"
	"time"
)

// NotFoundError indicates an id that resolved to nothing. Suggestion, when
// non-empty, carries the nearest known id.
type NotFoundError struct {
	ID         string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("not found: %s (did you mean %s?)", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("not found: %s", e.ID)
}

// ValidationError indicates a missing or malformed field on input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError indicates a status change not permitted by the
// task state machine.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// StaleAutomationError indicates an automation decision older than the
// apply window.
type StaleAutomationError struct {
	Age time.Duration
}

func (e *StaleAutomationError) Error() string {
	return fmt.Sprintf("stale automation decision: computed %s ago", e.Age.Round(time.Second))
}

// StorageError wraps an underlying read/write failure with path context
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
