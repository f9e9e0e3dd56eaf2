// Package persistence provides standardized error types for persistence operations.
package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates no workflow definition exists for the
	// given code or id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRequestNotFound indicates an approval request was not found.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrExecutionNotFound indicates a stage execution was not found.
	ErrExecutionNotFound = errors.New("stage execution not found")

	// ErrRequestNotPending indicates a guarded update targeted a request
	// that already reached a terminal state.
	ErrRequestNotPending = errors.New("approval request is not pending")

	// ErrExecutionNotPending indicates a guarded update targeted an
	// execution that already reached a terminal state.
	ErrExecutionNotPending = errors.New("stage execution is not pending")

	// ErrDuplicatePendingRequest indicates a pending request already
	// exists for the same entity.
	ErrDuplicatePendingRequest = errors.New("pending approval request already exists for entity")
)

// IsWorkflowNotFound checks if an error indicates a missing workflow definition.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsRequestNotFound checks if an error indicates a missing approval request.
func IsRequestNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing stage execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNotPending checks if an error indicates a guarded update lost against
// an earlier terminal transition.
func IsNotPending(err error) bool {
	return errors.Is(err, ErrRequestNotPending) || errors.Is(err, ErrExecutionNotPending)
}
