// Package resolver maps stage definitions to approver users. Resolution is
// a pure policy decision over the stage's approver type and the hierarchy
// context a request was submitted under.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/coopcore/approvals/pkg/hierarchy"
	"github.com/coopcore/approvals/pkg/models"
)

// Resolver resolves the approver of a stage. An empty user id is a valid
// outcome and means the stage execution starts unassigned.
type Resolver struct {
	lookup hierarchy.Lookup
	logger *slog.Logger
}

func NewResolver(lookup hierarchy.Lookup, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		logger: logger,
	}
}

// Resolve returns the approver user id for the stage, or "" when no
// approver can be determined. Directory failures degrade to unassigned:
// submission must not fail because one stage's admin lookup is down.
func (r *Resolver) Resolve(ctx context.Context, stage *models.StageDefinition, reqContext models.HierarchyContext) string {
	switch stage.ApproverType {
	case models.ApproverTypeSpecificUser:
		return stage.UserID
	case models.ApproverTypeHierarchy, models.ApproverTypeRole:
		// Role stages resolve exactly like hierarchy stages: RoleID is
		// carried in the definition but deliberately ignored here. See
		// DESIGN.md before "fixing" this.
		return r.resolveHierarchyAdmin(ctx, stage, reqContext)
	default:
		r.logger.WarnContext(ctx, "unknown approver type, leaving stage unassigned",
			"stage_id", stage.ID, "approver_type", stage.ApproverType)

		return ""
	}
}

func (r *Resolver) resolveHierarchyAdmin(ctx context.Context, stage *models.StageDefinition, reqContext models.HierarchyContext) string {
	if stage.OrganizationBody == "" {
		r.logger.WarnContext(ctx, "stage has no organization body, leaving unassigned",
			"stage_id", stage.ID)

		return ""
	}

	entityID := reqContext.IDFor(stage.OrganizationBody)
	if entityID == "" {
		r.logger.WarnContext(ctx, "submission context has no id for organization body, leaving unassigned",
			"stage_id", stage.ID, "organization_body", stage.OrganizationBody)

		return ""
	}

	userID, err := r.lookup.FindAdminUser(ctx, stage.OrganizationBody, entityID)
	if err != nil {
		if !errors.Is(err, hierarchy.ErrAdminNotFound) {
			r.logger.WarnContext(ctx, "hierarchy lookup failed, leaving stage unassigned",
				"stage_id", stage.ID, "organization_body", stage.OrganizationBody,
				"entity_id", entityID, "error", err)
		}

		return ""
	}

	return userID
}
