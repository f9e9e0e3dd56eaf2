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
	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index guarding one pending request per entity.
const uniqueViolation = "23505"

// RequestRepository handles approval-request database operations.
type RequestRepository struct {
	db     dbtx
	logger *slog.Logger
}

// NewRequestRepository creates a new approval request repository.
func NewRequestRepository(db dbtx, logger *slog.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `id, workflow_id, entity_type, entity_id, forum_id, area_id, unit_id,
	requested_by, requested_at, current_stage_order, status,
	approved_by, approved_at, rejected_by, rejected_at, rejection_reason`

// Create inserts a new pending approval request.
func (rr *RequestRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (id, workflow_id, entity_type, entity_id, forum_id, area_id, unit_id,
		                               requested_by, requested_at, current_stage_order, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := rr.db.ExecContext(ctx, query,
		request.ID,
		request.WorkflowID,
		request.EntityType,
		request.EntityID,
		nullableString(request.Context.ForumID),
		nullableString(request.Context.AreaID),
		nullableString(request.Context.UnitID),
		request.RequestedBy,
		request.RequestedAt,
		request.CurrentStageOrder,
		string(request.Status),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return persistence.ErrDuplicatePendingRequest
		}

		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

// GetByID retrieves an approval request by id.
func (rr *RequestRepository) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1`

	request, err := rr.scanRequest(rr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRequestNotFound
		}

		return nil, fmt.Errorf("failed to scan approval request: %w", err)
	}

	return request, nil
}

// GetPendingByEntity retrieves the pending request for an entity, newest
// first should historical duplicates ever exist.
func (rr *RequestRepository) GetPendingByEntity(ctx context.Context, entityType, entityID string) (*models.ApprovalRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM approval_requests
		WHERE entity_type = $1 AND entity_id = $2 AND status = 'pending'
		ORDER BY requested_at DESC
		LIMIT 1
	`

	request, err := rr.scanRequest(rr.db.QueryRowContext(ctx, query, entityType, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRequestNotFound
		}

		return nil, fmt.Errorf("failed to scan approval request: %w", err)
	}

	return request, nil
}

// MarkApproved transitions a pending request to approved. The status guard
// in the WHERE clause makes concurrent terminal transitions lose cleanly.
func (rr *RequestRepository) MarkApproved(ctx context.Context, id, approvedBy string, approvedAt time.Time) error {
	query := `
		UPDATE approval_requests
		SET status = 'approved', approved_by = $2, approved_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	return rr.guardedUpdate(ctx, query, id, approvedBy, approvedAt)
}

// MarkRejected transitions a pending request to rejected.
func (rr *RequestRepository) MarkRejected(ctx context.Context, id, rejectedBy string, rejectedAt time.Time, reason string) error {
	query := `
		UPDATE approval_requests
		SET status = 'rejected', rejected_by = $2, rejected_at = $3, rejection_reason = $4
		WHERE id = $1 AND status = 'pending'
	`

	return rr.guardedUpdate(ctx, query, id, rejectedBy, rejectedAt, nullableString(reason))
}

// AdvanceStagePointer moves the progress pointer of a pending request
// forward by one stage. The increment runs inside the UPDATE so concurrent
// advances serialize on the row instead of overwriting each other.
func (rr *RequestRepository) AdvanceStagePointer(ctx context.Context, id string) error {
	query := `
		UPDATE approval_requests
		SET current_stage_order = current_stage_order + 1
		WHERE id = $1 AND status = 'pending'
	`

	return rr.guardedUpdate(ctx, query, id)
}

func (rr *RequestRepository) guardedUpdate(ctx context.Context, query, id string, args ...any) error {
	result, err := rr.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update approval request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the request is gone or it already reached a terminal
		// state; distinguish for the caller.
		_, getErr := rr.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}

		return persistence.ErrRequestNotPending
	}

	return nil
}

func (rr *RequestRepository) scanRequest(scanner interface {
	Scan(dest ...any) error
}) (*models.ApprovalRequest, error) {
	var (
		request                                models.ApprovalRequest
		status                                 string
		forumID, areaID, unitID                sql.NullString
		approvedBy, rejectedBy, rejectedReason sql.NullString
		approvedAt, rejectedAt                 sql.NullTime
	)

	err := scanner.Scan(
		&request.ID,
		&request.WorkflowID,
		&request.EntityType,
		&request.EntityID,
		&forumID,
		&areaID,
		&unitID,
		&request.RequestedBy,
		&request.RequestedAt,
		&request.CurrentStageOrder,
		&status,
		&approvedBy,
		&approvedAt,
		&rejectedBy,
		&rejectedAt,
		&rejectedReason,
	)
	if err != nil {
		return nil, err
	}

	request.Status = models.RequestStatus(status)
	request.Context = models.HierarchyContext{
		ForumID: forumID.String,
		AreaID:  areaID.String,
		UnitID:  unitID.String,
	}
	request.ApprovedBy = approvedBy.String
	request.RejectedBy = rejectedBy.String
	request.RejectionReason = rejectedReason.String

	if approvedAt.Valid {
		request.ApprovedAt = &approvedAt.Time
	}

	if rejectedAt.Valid {
		request.RejectedAt = &rejectedAt.Time
	}

	return &request, nil
}
