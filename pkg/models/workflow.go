// Package models defines the core domain models for multi-stage approval workflows.
package models

import "time"

// ApproverType selects the policy used to resolve the approver of a stage.
type ApproverType string

const (
	ApproverTypeSpecificUser ApproverType = "specific_user" // Fixed user configured on the stage
	ApproverTypeRole         ApproverType = "role"          // Role holder at a hierarchy level
	ApproverTypeHierarchy    ApproverType = "hierarchy"     // Administrator of a hierarchy entity
)

// OrganizationBody identifies a level of the organizational hierarchy
// (forum contains areas, area contains units).
type OrganizationBody string

const (
	OrganizationBodyUnit  OrganizationBody = "unit"
	OrganizationBodyArea  OrganizationBody = "area"
	OrganizationBodyForum OrganizationBody = "forum"
)

// WorkflowDefinition is a named template of ordered approval stages. A
// submission snapshots its stages, so later edits never affect in-flight
// requests.
type WorkflowDefinition struct {
	ID          string `json:"id"`
	Code        string `json:"code"        validate:"required"`
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`

	// RequiresAllStages selects between "every stage must approve" and
	// "approval of the current-pointer stage completes the request".
	RequiresAllStages bool `json:"requires_all_stages"`

	Stages    []*StageDefinition `json:"stages,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// StageDefinition is one ordered approval gate within a workflow.
type StageDefinition struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`

	// StageOrder is unique within a workflow and defines the iteration
	// order and the request's progress pointer. It is not a sequencing
	// gate: later stages may be decided before earlier ones.
	StageOrder int `json:"stage_order" validate:"required,min=1"`

	ApproverType     ApproverType     `json:"approver_type" validate:"required,oneof=specific_user role hierarchy"`
	UserID           string           `json:"user_id,omitempty"`           // specific_user only
	RoleID           string           `json:"role_id,omitempty"`           // advisory for role stages
	OrganizationBody OrganizationBody `json:"organization_body,omitempty"` // role and hierarchy stages

	IsOptional bool `json:"is_optional"`

	// AutoApprove is persisted for forward compatibility; the decision
	// engine does not act on it.
	AutoApprove bool `json:"auto_approve"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HierarchyContext carries the organizational ids a submission was made
// under. Stages resolve their approver against the id matching their
// organization body.
type HierarchyContext struct {
	ForumID string `json:"forum_id,omitempty"`
	AreaID  string `json:"area_id,omitempty"`
	UnitID  string `json:"unit_id,omitempty"`
}

// IDFor returns the context id for the given organization body.
func (c HierarchyContext) IDFor(body OrganizationBody) string {
	switch body {
	case OrganizationBodyUnit:
		return c.UnitID
	case OrganizationBodyArea:
		return c.AreaID
	case OrganizationBodyForum:
		return c.ForumID
	default:
		return ""
	}
}
