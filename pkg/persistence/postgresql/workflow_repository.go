package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
)

// WorkflowRepository handles workflow-definition database operations.
type WorkflowRepository struct {
	db     dbtx
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow definition repository.
func NewWorkflowRepository(db dbtx, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `id, code, name, description, is_active, requires_all_stages, created_at, updated_at`

// GetByCode retrieves a workflow definition by its unique code.
func (wr *WorkflowRepository) GetByCode(ctx context.Context, code string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE code = $1`

	workflow, err := wr.scanWorkflow(wr.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
	}

	return workflow, nil
}

// GetByID retrieves a workflow definition by its id.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE id = $1`

	workflow, err := wr.scanWorkflow(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
	}

	return workflow, nil
}

// GetStages retrieves the stage definitions of a workflow ordered by stage order.
func (wr *WorkflowRepository) GetStages(ctx context.Context, workflowID string) ([]*models.StageDefinition, error) {
	query := `
		SELECT id, workflow_id, name, stage_order, approver_type, user_id, role_id,
		       organization_body, is_optional, auto_approve, created_at, updated_at
		FROM stage_definitions
		WHERE workflow_id = $1
		ORDER BY stage_order
	`

	rows, err := wr.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage definitions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var stages []*models.StageDefinition

	for rows.Next() {
		stage, err := wr.scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage definition: %w", err)
		}

		stages = append(stages, stage)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage definitions: %w", err)
	}

	return stages, nil
}

// Save upserts a workflow definition and replaces its stage definitions.
// Existing stage executions keep their own snapshot of order and approver,
// so replacing stages never rewrites in-flight requests.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	query := `
		INSERT INTO workflow_definitions (id, code, name, description, is_active, requires_all_stages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			requires_all_stages = EXCLUDED.requires_all_stages,
			updated_at = EXCLUDED.updated_at
	`

	_, err := wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Code,
		workflow.Name,
		workflow.Description,
		workflow.IsActive,
		workflow.RequiresAllStages,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow definition: %w", err)
	}

	// The upsert may have kept an existing row id; resolve the stored id
	// before rewriting stages.
	stored, err := wr.GetByCode(ctx, workflow.Code)
	if err != nil {
		return err
	}

	workflow.ID = stored.ID

	_, err = wr.db.ExecContext(ctx, `DELETE FROM stage_definitions WHERE workflow_id = $1`, stored.ID)
	if err != nil {
		return fmt.Errorf("failed to clear stage definitions: %w", err)
	}

	for _, stage := range workflow.Stages {
		stage.WorkflowID = stored.ID

		err = wr.saveStage(ctx, stage)
		if err != nil {
			return err
		}
	}

	return nil
}

func (wr *WorkflowRepository) saveStage(ctx context.Context, stage *models.StageDefinition) error {
	query := `
		INSERT INTO stage_definitions (id, workflow_id, name, stage_order, approver_type, user_id, role_id,
		                               organization_body, is_optional, auto_approve, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := wr.db.ExecContext(ctx, query,
		stage.ID,
		stage.WorkflowID,
		stage.Name,
		stage.StageOrder,
		string(stage.ApproverType),
		nullableString(stage.UserID),
		nullableString(stage.RoleID),
		nullableString(string(stage.OrganizationBody)),
		stage.IsOptional,
		stage.AutoApprove,
		stage.CreatedAt,
		stage.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save stage definition: %w", err)
	}

	return nil
}

// List retrieves all workflow definitions ordered by code.
func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions ORDER BY code`

	rows, err := wr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var workflows []*models.WorkflowDefinition

	for rows.Next() {
		workflow, err := wr.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow definitions: %w", err)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowDefinition, error) {
	var workflow models.WorkflowDefinition

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Code,
		&workflow.Name,
		&workflow.Description,
		&workflow.IsActive,
		&workflow.RequiresAllStages,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) scanStage(scanner interface {
	Scan(dest ...any) error
}) (*models.StageDefinition, error) {
	var (
		stage                    models.StageDefinition
		approverType             string
		userID, roleID, orgsBody sql.NullString
	)

	err := scanner.Scan(
		&stage.ID,
		&stage.WorkflowID,
		&stage.Name,
		&stage.StageOrder,
		&approverType,
		&userID,
		&roleID,
		&orgsBody,
		&stage.IsOptional,
		&stage.AutoApprove,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	stage.ApproverType = models.ApproverType(approverType)
	stage.UserID = userID.String
	stage.RoleID = roleID.String
	stage.OrganizationBody = models.OrganizationBody(orgsBody.String)

	return &stage, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
