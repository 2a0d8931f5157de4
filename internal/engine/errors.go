package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/sweep/internal/ir"
)

// ErrCancelled is wrapped by every error reported for a destroyed task.
var ErrCancelled = errors.New("task cancelled")

// ErrNotCooperative is returned by control primitives that only exist for
// traversals running as scheduler tasks.
var ErrNotCooperative = errors.New("primitive requires a cooperative traversal")

// ErrSchedulerClosed is returned when a cooperative traversal is started on
// a closed scheduler.
var ErrSchedulerClosed = errors.New("scheduler closed")

// RuntimeError represents an error detected by the engine.
//
// Runtime errors include:
//   - Configuration errors: raised by Traverse before any element is visited
//   - Traversal errors: a filter or callback failed, panicked, or a future
//     it returned was rejected
//   - Cancellation: the task was destroyed before completion
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// TaskID identifies the affected run, when there is one.
	TaskID string

	// Fingerprint identifies the plan that was executing.
	Fingerprint string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeIncompatibleOperation indicates the requested operation
	// cannot be applied to the collection kind.
	ErrCodeIncompatibleOperation RuntimeErrorCode = "INCOMPATIBLE_OPERATION"

	// ErrCodeUnsupportedKind indicates the value is not a collection.
	ErrCodeUnsupportedKind RuntimeErrorCode = "UNSUPPORTED_KIND"

	// ErrCodeInvalidWindow indicates a negative window or counter.
	ErrCodeInvalidWindow RuntimeErrorCode = "INVALID_WINDOW"

	// ErrCodeTraversal indicates a filter or callback failure.
	ErrCodeTraversal RuntimeErrorCode = "TRAVERSAL_FAILED"

	// ErrCodeCancelled indicates the task was destroyed.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"

	// ErrCodeLineageCycle indicates a child registration that would make
	// a task its own ancestor.
	ErrCodeLineageCycle RuntimeErrorCode = "LINEAGE_CYCLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.TaskID != "" {
		msg += fmt.Sprintf(" (task=%s)", e.TaskID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsConfigError reports whether err was raised before traversal began.
func IsConfigError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		switch re.Code {
		case ErrCodeIncompatibleOperation, ErrCodeUnsupportedKind, ErrCodeInvalidWindow:
			return true
		}
	}
	return false
}

// IsTraversalError reports whether err came from a filter or callback.
func IsTraversalError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeTraversal
}

// IsCancelled reports whether err reports a destroyed task.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// NewIncompatibleOperationError creates the error for an operation that
// the collection kind cannot support, such as a write to a Source.
func NewIncompatibleOperationError(kind ir.Kind, operation string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeIncompatibleOperation,
		Message: fmt.Sprintf("%s is not supported by %s collections", operation, kind),
		Details: map[string]string{"kind": string(kind), "operation": operation},
	}
}

// NewUnsupportedKindError creates the error for a value that is not a
// traversable collection.
func NewUnsupportedKindError(coll any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedKind,
		Message: fmt.Sprintf("cannot traverse %s", describe(coll)),
	}
}

// NewTraversalError wraps a filter or callback failure.
func NewTraversalError(taskID, fingerprint string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:        ErrCodeTraversal,
		Message:     "traversal failed",
		TaskID:      taskID,
		Fingerprint: fingerprint,
		Err:         cause,
	}
}

// NewCancelledError reports a destroyed task.
func NewCancelledError(taskID string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCancelled,
		Message: "task destroyed before completion",
		TaskID:  taskID,
		Err:     ErrCancelled,
	}
}
