// Package persistence provides the data storage abstraction for approval
// workflows, requests and stage executions.
package persistence

import (
	"context"
	"time"

	"github.com/coopcore/approvals/pkg/models"
)

// Repositories groups the repositories that participate in a unit of work.
type Repositories interface {
	WorkflowRepository() WorkflowRepository
	RequestRepository() RequestRepository
	ExecutionRepository() ExecutionRepository
}

// Persistence is the storage entry point. Transaction runs fn against
// repositories bound to one atomic unit of work: every write inside fn is
// either fully visible after return or not at all.
type Persistence interface {
	Repositories

	Transaction(ctx context.Context, fn func(Repositories) error) error
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions and their ordered stages.
type WorkflowRepository interface {
	// GetByCode returns the definition regardless of its active flag;
	// callers decide whether inactive is acceptable.
	GetByCode(ctx context.Context, code string) (*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)

	// GetStages returns the stage definitions ordered by stage order.
	GetStages(ctx context.Context, workflowID string) ([]*models.StageDefinition, error)

	// Save upserts a definition together with its stages (admin path).
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// RequestRepository stores approval requests. Terminal-state updates are
// guarded: they only apply while the request is still pending, so two
// concurrent deciders cannot both conclude a request.
type RequestRepository interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error)

	// GetPendingByEntity returns the pending request for the entity, or
	// ErrRequestNotFound when none exists.
	GetPendingByEntity(ctx context.Context, entityType, entityID string) (*models.ApprovalRequest, error)

	MarkApproved(ctx context.Context, id, approvedBy string, approvedAt time.Time) error
	MarkRejected(ctx context.Context, id, rejectedBy string, rejectedAt time.Time, reason string) error

	// AdvanceStagePointer moves the progress pointer of a still-pending
	// request forward by one stage. The increment happens in the store so
	// concurrent advances cannot overwrite each other.
	AdvanceStagePointer(ctx context.Context, id string) error
}

// PendingCount is the number of pending stage executions assigned to a
// user for one workflow.
type PendingCount struct {
	WorkflowCode string `json:"workflow_code"`
	Count        int    `json:"count"`
}

// ExecutionRepository stores stage executions. MarkDecided carries the
// same pending-only guard as the request updates.
type ExecutionRepository interface {
	CreateBatch(ctx context.Context, executions []*models.StageExecution) error
	GetByID(ctx context.Context, id string) (*models.StageExecution, error)

	// ListByRequest returns all executions of a request ordered by stage
	// order.
	ListByRequest(ctx context.Context, requestID string) ([]*models.StageExecution, error)

	MarkDecided(ctx context.Context, id string, status models.ExecutionStatus, decision models.Decision, reviewedBy string, reviewedAt time.Time, comments string) error

	ListPendingByApprover(ctx context.Context, approverID string) ([]*models.StageExecution, error)
	CountPendingByApprover(ctx context.Context, approverID string) ([]PendingCount, error)
}
