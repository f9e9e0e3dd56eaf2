package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema validates workflow definition documents before import.
const definitionSchema = `{
	"type": "object",
	"required": ["code", "name", "stages"],
	"properties": {
		"code": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_]+$"},
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"is_active": {"type": "boolean"},
		"requires_all_stages": {"type": "boolean"},
		"stages": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["stage_order", "approver_type"],
				"properties": {
					"name": {"type": "string"},
					"stage_order": {"type": "integer", "minimum": 1},
					"approver_type": {"type": "string", "enum": ["specific_user", "role", "hierarchy"]},
					"user_id": {"type": "string"},
					"role_id": {"type": "string"},
					"organization_body": {"type": "string", "enum": ["unit", "area", "forum"]},
					"is_optional": {"type": "boolean"},
					"auto_approve": {"type": "boolean"}
				}
			}
		}
	}
}`

// DefinitionDocument is the import payload for one workflow definition.
type DefinitionDocument struct {
	Code              string                    `json:"code"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	IsActive          *bool                     `json:"is_active"`
	RequiresAllStages *bool                     `json:"requires_all_stages"`
	Stages            []DefinitionStageDocument `json:"stages"`
}

// DefinitionStageDocument is one stage entry of a definition document.
type DefinitionStageDocument struct {
	Name             string `json:"name"`
	StageOrder       int    `json:"stage_order"`
	ApproverType     string `json:"approver_type"`
	UserID           string `json:"user_id"`
	RoleID           string `json:"role_id"`
	OrganizationBody string `json:"organization_body"`
	IsOptional       bool   `json:"is_optional"`
	AutoApprove      bool   `json:"auto_approve"`
}

// Definition manages workflow definitions: the administrative path that
// feeds the engine. Imports never touch in-flight requests; stage
// executions keep the snapshot taken at their submission.
type Definition struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	schema      *gojsonschema.Schema
}

// NewDefinition creates the workflow definition service.
func NewDefinition(persistence persistence.Persistence, logger *slog.Logger) (*Definition, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}

	return &Definition{
		persistence: persistence,
		logger:      logger,
		schema:      schema,
	}, nil
}

// Import validates and upserts one workflow definition document.
func (d *Definition) Import(ctx context.Context, payload []byte) (*models.WorkflowDefinition, error) {
	validationResult, err := d.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	if !validationResult.Valid() {
		details := make([]string, 0, len(validationResult.Errors()))
		for _, desc := range validationResult.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(details, "; "))
	}

	var document DefinitionDocument

	err = json.Unmarshal(payload, &document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	workflow, err := buildDefinition(document)
	if err != nil {
		return nil, err
	}

	err = d.persistence.Transaction(ctx, func(repos persistence.Repositories) error {
		return repos.WorkflowRepository().Save(ctx, workflow)
	})
	if err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "workflow definition imported",
		"workflow_code", workflow.Code, "stages", len(workflow.Stages))

	return workflow, nil
}

// buildDefinition turns a validated document into domain models, checking
// the constraints the JSON schema cannot express.
func buildDefinition(document DefinitionDocument) (*models.WorkflowDefinition, error) {
	now := time.Now().UTC()

	workflow := &models.WorkflowDefinition{
		ID:                uuid.NewString(),
		Code:              document.Code,
		Name:              document.Name,
		Description:       document.Description,
		IsActive:          true,
		RequiresAllStages: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if document.IsActive != nil {
		workflow.IsActive = *document.IsActive
	}

	if document.RequiresAllStages != nil {
		workflow.RequiresAllStages = *document.RequiresAllStages
	}

	seenOrders := make(map[int]bool, len(document.Stages))

	for _, stageDoc := range document.Stages {
		if seenOrders[stageDoc.StageOrder] {
			return nil, fmt.Errorf("%w: duplicate stage order %d", ErrInvalidDefinition, stageDoc.StageOrder)
		}

		seenOrders[stageDoc.StageOrder] = true

		approverType := models.ApproverType(stageDoc.ApproverType)

		if approverType == models.ApproverTypeSpecificUser && stageDoc.UserID == "" {
			return nil, fmt.Errorf("%w: stage %d requires user_id for specific_user approver", ErrInvalidDefinition, stageDoc.StageOrder)
		}

		if (approverType == models.ApproverTypeHierarchy || approverType == models.ApproverTypeRole) && stageDoc.OrganizationBody == "" {
			return nil, fmt.Errorf("%w: stage %d requires organization_body for %s approver", ErrInvalidDefinition, stageDoc.StageOrder, approverType)
		}

		workflow.Stages = append(workflow.Stages, &models.StageDefinition{
			ID:               uuid.NewString(),
			WorkflowID:       workflow.ID,
			Name:             stageDoc.Name,
			StageOrder:       stageDoc.StageOrder,
			ApproverType:     approverType,
			UserID:           stageDoc.UserID,
			RoleID:           stageDoc.RoleID,
			OrganizationBody: models.OrganizationBody(stageDoc.OrganizationBody),
			IsOptional:       stageDoc.IsOptional,
			AutoApprove:      stageDoc.AutoApprove,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	return workflow, nil
}

// FetchByCode returns a workflow definition with its ordered stages.
func (d *Definition) FetchByCode(ctx context.Context, code string) (*models.WorkflowDefinition, error) {
	workflow, err := d.persistence.WorkflowRepository().GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	stages, err := d.persistence.WorkflowRepository().GetStages(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	workflow.Stages = stages

	return workflow, nil
}

// List returns all workflow definitions without stages.
func (d *Definition) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return d.persistence.WorkflowRepository().List(ctx)
}
