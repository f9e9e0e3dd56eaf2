package models

import "time"

// ExecutionStatus is the lifecycle state of one stage execution.
type ExecutionStatus string

const (
	ExecutionStatusPending  ExecutionStatus = "pending"
	ExecutionStatusApproved ExecutionStatus = "approved"
	ExecutionStatusRejected ExecutionStatus = "rejected"
	ExecutionStatusSkipped  ExecutionStatus = "skipped"
)

// Decision is a reviewer's verdict on a stage execution.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// StageExecution is the per-request instance of a stage definition. All
// executions of a request are created at submission time, snapshotting the
// workflow as it was then.
type StageExecution struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	StageID    string `json:"stage_id"`
	StageOrder int    `json:"stage_order"`

	Status ExecutionStatus `json:"status"`

	// AssignedApproverID is nil when approver resolution found nobody; the
	// execution is then decidable per the orchestrator's unassigned policy.
	AssignedApproverID *string `json:"assigned_approver_id,omitempty"`

	Decision   Decision   `json:"decision,omitempty"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	Comments   string     `json:"comments,omitempty"`
}

// IsTerminal reports whether the execution has been decided or skipped.
func (e *StageExecution) IsTerminal() bool {
	return e.Status != ExecutionStatusPending
}

// IsSatisfied reports whether the execution counts toward completion.
func (e *StageExecution) IsSatisfied() bool {
	return e.Status == ExecutionStatusApproved || e.Status == ExecutionStatusSkipped
}

// IsAssigned reports whether a concrete approver holds this execution.
func (e *StageExecution) IsAssigned() bool {
	return e.AssignedApproverID != nil && *e.AssignedApproverID != ""
}
