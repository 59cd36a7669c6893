package common

import (
	"fmt"
	"time"
)

// ValidationError indicates bad input. Nothing is persisted when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConnectivityError indicates a feed endpoint could not be reached during a probe.
type ConnectivityError struct {
	Feed string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("feed %q unreachable: %v", e.Feed, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// NotFoundError indicates a lookup by id found nothing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ExecutionError is a step or task failure. It is captured into result objects
// rather than propagated, so one failing step never aborts a batch.
type ExecutionError struct {
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError is a step exceeding its budget. The step runner wraps it in an
// ExecutionError, so callers that classify failures treat the two identically.
type TimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s budget", e.Stage, e.Budget)
}
