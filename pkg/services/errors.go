// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"

	"github.com/coopcore/approvals/pkg/persistence"
)

// Business logic errors. Validation errors map to HTTP 400, authorization
// errors to HTTP 403; missing entities surface the persistence not-found
// sentinels and map to HTTP 404.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest          = errors.New("invalid request")
	ErrWorkflowInactive        = errors.New("workflow is not active")
	ErrWorkflowHasNoStages     = errors.New("workflow has no stages configured")
	ErrRequestAlreadyPending   = errors.New("approval request already pending for entity")
	ErrExecutionAlreadyDecided = errors.New("stage execution already decided")
	ErrRequestAlreadyFinalized = errors.New("approval request already finalized")
	ErrInvalidDefinition       = errors.New("invalid workflow definition document")

	// Authorization errors (403 Forbidden).
	ErrNotAssignedApprover  = errors.New("reviewer is not the assigned approver")
	ErrUnassignedNotAllowed = errors.New("stage execution has no assigned approver")
)

// IsValidationError checks if an error is a caller error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowInactive) ||
		errors.Is(err, ErrWorkflowHasNoStages) ||
		errors.Is(err, ErrRequestAlreadyPending) ||
		errors.Is(err, ErrExecutionAlreadyDecided) ||
		errors.Is(err, ErrRequestAlreadyFinalized) ||
		errors.Is(err, ErrInvalidDefinition)
}

// IsForbiddenError checks if an error is an authorization failure that should return HTTP 403.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrNotAssignedApprover) ||
		errors.Is(err, ErrUnassignedNotAllowed)
}

// IsNotFoundError checks if an error indicates a missing entity that should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsRequestNotFound(err) ||
		persistence.IsExecutionNotFound(err)
}
