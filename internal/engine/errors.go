package engine

import (
	"errors"
	"fmt"
)

// RunError describes why a run ended in failure.
//
// Run errors are terminal conditions, not programming errors: the engine
// still produces a report and the caller decides the exit code.
type RunError struct {
	// Code identifies the failure category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Timestamp is the simulator time (µs) of the event that ended the run,
	// or the last applied timestamp for host-side terminations.
	Timestamp int64
}

// RunErrorCode categorizes run failures.
type RunErrorCode string

const (
	// ErrCodeAuthTimeout indicates the protocol reported an authentication timeout.
	ErrCodeAuthTimeout RunErrorCode = "AUTH_TIMEOUT"

	// ErrCodeDeadlineExceeded indicates an event arrived past the simulated run deadline.
	ErrCodeDeadlineExceeded RunErrorCode = "DEADLINE_EXCEEDED"

	// ErrCodeStreamEnded indicates the input ended before a terminal outcome.
	ErrCodeStreamEnded RunErrorCode = "STREAM_ENDED"

	// ErrCodeCancelled indicates the host cancelled the run.
	ErrCodeCancelled RunErrorCode = "CANCELLED"
)

// Failure reasons recorded in metrics.State.Reason and the results store.
const (
	ReasonAuthTimeout      = "auth_timeout"
	ReasonDeadlineExceeded = "deadline_exceeded"
	ReasonStreamEnded      = "stream_ended"
	ReasonCancelled        = "cancelled"
)

// Reason returns the state reason string for the code.
func (c RunErrorCode) Reason() string {
	switch c {
	case ErrCodeAuthTimeout:
		return ReasonAuthTimeout
	case ErrCodeDeadlineExceeded:
		return ReasonDeadlineExceeded
	case ErrCodeStreamEnded:
		return ReasonStreamEnded
	case ErrCodeCancelled:
		return ReasonCancelled
	default:
		return string(c)
	}
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Timestamp > 0 {
		return fmt.Sprintf("%s: %s (t=%dus)", e.Code, e.Message, e.Timestamp)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsTimeout returns true if the error is a protocol authentication timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeAuthTimeout
	}
	return false
}

// IsDeadline returns true if the error is a simulated deadline overrun.
func IsDeadline(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDeadlineExceeded
	}
	return false
}

// IsStreamEnded returns true if the input ended without a terminal outcome.
func IsStreamEnded(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStreamEnded
	}
	return false
}

// IsCancelled returns true if the host cancelled the run.
func IsCancelled(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCancelled
	}
	return false
}

// NewTimeoutError creates a RunError for an authentication timeout marker.
func NewTimeoutError(t int64) *RunError {
	return &RunError{
		Code:      ErrCodeAuthTimeout,
		Message:   "protocol reported authentication timeout",
		Timestamp: t,
	}
}

// NewDeadlineError creates a RunError for an event past the run deadline.
func NewDeadlineError(t, deadline int64) *RunError {
	return &RunError{
		Code:      ErrCodeDeadlineExceeded,
		Message:   fmt.Sprintf("event past simulated deadline of %dus", deadline),
		Timestamp: t,
	}
}

// NewStreamEndedError creates a RunError for input that ended early.
func NewStreamEndedError(last int64, events int) *RunError {
	return &RunError{
		Code:      ErrCodeStreamEnded,
		Message:   fmt.Sprintf("input ended after %d events without a terminal outcome", events),
		Timestamp: last,
	}
}

// NewCancelledError creates a RunError for host cancellation.
func NewCancelledError(last int64, cause error) *RunError {
	msg := "run cancelled"
	if cause != nil {
		msg = fmt.Sprintf("run cancelled: %v", cause)
	}
	return &RunError{
		Code:      ErrCodeCancelled,
		Message:   msg,
		Timestamp: last,
	}
}
