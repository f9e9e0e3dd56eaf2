package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
)

// ExecutionRepository handles stage-execution database operations.
type ExecutionRepository struct {
	db     dbtx
	logger *slog.Logger
}

// NewExecutionRepository creates a new stage execution repository.
func NewExecutionRepository(db dbtx, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, request_id, stage_id, stage_order, assigned_approver_id,
	status, reviewed_by, reviewed_at, decision, comments`

// CreateBatch inserts all stage executions of a submission.
func (er *ExecutionRepository) CreateBatch(ctx context.Context, executions []*models.StageExecution) error {
	query := `
		INSERT INTO stage_executions (id, request_id, stage_id, stage_order, assigned_approver_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, execution := range executions {
		var approver any
		if execution.IsAssigned() {
			approver = *execution.AssignedApproverID
		}

		_, err := er.db.ExecContext(ctx, query,
			execution.ID,
			execution.RequestID,
			execution.StageID,
			execution.StageOrder,
			approver,
			string(execution.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to create stage execution: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a stage execution by id.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.StageExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM stage_executions WHERE id = $1`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan stage execution: %w", err)
	}

	return execution, nil
}

// ListByRequest retrieves all executions of a request ordered by stage order.
func (er *ExecutionRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.StageExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM stage_executions
		WHERE request_id = $1
		ORDER BY stage_order
	`

	return er.queryExecutions(ctx, query, requestID)
}

// MarkDecided records a reviewer decision on a still-pending execution.
func (er *ExecutionRepository) MarkDecided(ctx context.Context, id string, status models.ExecutionStatus, decision models.Decision, reviewedBy string, reviewedAt time.Time, comments string) error {
	query := `
		UPDATE stage_executions
		SET status = $2, decision = $3, reviewed_by = $4, reviewed_at = $5, comments = $6
		WHERE id = $1 AND status = 'pending'
	`

	result, err := er.db.ExecContext(ctx, query,
		id,
		string(status),
		string(decision),
		reviewedBy,
		reviewedAt,
		nullableString(comments),
	)
	if err != nil {
		return fmt.Errorf("failed to update stage execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		_, getErr := er.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}

		return persistence.ErrExecutionNotPending
	}

	return nil
}

// ListPendingByApprover retrieves the pending executions assigned to an approver.
func (er *ExecutionRepository) ListPendingByApprover(ctx context.Context, approverID string) ([]*models.StageExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM stage_executions
		WHERE assigned_approver_id = $1 AND status = 'pending'
		ORDER BY stage_order
	`

	return er.queryExecutions(ctx, query, approverID)
}

// CountPendingByApprover counts pending executions per workflow code.
func (er *ExecutionRepository) CountPendingByApprover(ctx context.Context, approverID string) ([]persistence.PendingCount, error) {
	query := `
		SELECT wd.code, COUNT(*)
		FROM stage_executions se
		JOIN approval_requests ar ON ar.id = se.request_id
		JOIN workflow_definitions wd ON wd.id = ar.workflow_id
		WHERE se.assigned_approver_id = $1 AND se.status = 'pending'
		GROUP BY wd.code
		ORDER BY wd.code
	`

	rows, err := er.db.QueryContext(ctx, query, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending counts: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var counts []persistence.PendingCount

	for rows.Next() {
		var count persistence.PendingCount

		err := rows.Scan(&count.WorkflowCode, &count.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending count: %w", err)
		}

		counts = append(counts, count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending counts: %w", err)
	}

	return counts, nil
}

func (er *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.StageExecution, error) {
	rows, err := er.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.StageExecution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage executions: %w", err)
	}

	return executions, nil
}

func (er *ExecutionRepository) scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.StageExecution, error) {
	var (
		execution            models.StageExecution
		status               string
		approver, reviewedBy sql.NullString
		decision, comments   sql.NullString
		reviewedAt           sql.NullTime
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.RequestID,
		&execution.StageID,
		&execution.StageOrder,
		&approver,
		&status,
		&reviewedBy,
		&reviewedAt,
		&decision,
		&comments,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.ReviewedBy = reviewedBy.String
	execution.Decision = models.Decision(decision.String)
	execution.Comments = comments.String

	if approver.Valid {
		value := approver.String
		execution.AssignedApproverID = &value
	}

	if reviewedAt.Valid {
		execution.ReviewedAt = &reviewedAt.Time
	}

	return &execution, nil
}
