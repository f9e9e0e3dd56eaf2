// Package web provides HTTP request and response types for the approvals API.
package web

import "github.com/coopcore/approvals/pkg/models"

// SubmitApprovalRequest is the request body for submitting an entity to an
// approval workflow.
type SubmitApprovalRequest struct {
	WorkflowCode string                  `json:"workflow_code" validate:"required"`
	EntityType   string                  `json:"entity_type"   validate:"required"`
	EntityID     string                  `json:"entity_id"     validate:"required"`
	Context      models.HierarchyContext `json:"context"`
	RequestedBy  string                  `json:"requested_by"  validate:"required"`
}

// DecideExecutionRequest is the request body for deciding one stage execution.
// The execution id comes from the URL.
type DecideExecutionRequest struct {
	Decision   string `json:"decision"    validate:"required,oneof=approve reject"`
	ReviewedBy string `json:"reviewed_by" validate:"required"`
	Comments   string `json:"comments"`
}
