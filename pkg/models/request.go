package models

import "time"

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// ApprovalRequest is one run of a workflow against a business entity. At
// most one pending request exists per (entity type, entity id) pair.
type ApprovalRequest struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	EntityType string `json:"entity_type" validate:"required"`
	EntityID   string `json:"entity_id"   validate:"required"`

	Context HierarchyContext `json:"context"`

	RequestedBy string    `json:"requested_by" validate:"required"`
	RequestedAt time.Time `json:"requested_at"`

	// CurrentStageOrder tracks progress through the stage sequence. It is a
	// pointer, not a gate: executions of later stages may be decided first.
	CurrentStageOrder int `json:"current_stage_order"`

	Status RequestStatus `json:"status"`

	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// IsTerminal reports whether the request reached a final state.
func (r *ApprovalRequest) IsTerminal() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}
