//go:build integration
// +build integration

package postgresql

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by APPROVALS_TEST_DATABASE_URL.
// Migrations run on connect; tests create their own rows and never assume a
// clean database.
func setupTestDB(t *testing.T) (*Persistence, context.Context) {
	t.Helper()

	databaseURL := os.Getenv("APPROVALS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("APPROVALS_TEST_DATABASE_URL not set, skipping integration tests")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(ctx) })

	return store, ctx
}

func seedWorkflow(t *testing.T, ctx context.Context, store *Persistence) *models.WorkflowDefinition {
	t.Helper()

	now := time.Now().UTC()
	workflow := &models.WorkflowDefinition{
		ID:                uuid.NewString(),
		Code:              "itest_" + uuid.NewString()[:8],
		Name:              "Integration Workflow",
		IsActive:          true,
		RequiresAllStages: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	workflow.Stages = []*models.StageDefinition{{
		ID:               uuid.NewString(),
		WorkflowID:       workflow.ID,
		Name:             "Unit Admin Review",
		StageOrder:       1,
		ApproverType:     models.ApproverTypeHierarchy,
		OrganizationBody: models.OrganizationBodyUnit,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}

	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	return workflow
}

func TestIntegration_WorkflowRoundTrip(t *testing.T) {
	store, ctx := setupTestDB(t)
	workflow := seedWorkflow(t, ctx, store)

	fetched, err := store.WorkflowRepository().GetByCode(ctx, workflow.Code)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, fetched.ID)

	stages, err := store.WorkflowRepository().GetStages(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, models.ApproverTypeHierarchy, stages[0].ApproverType)
}

func TestIntegration_PendingUniqueness(t *testing.T) {
	store, ctx := setupTestDB(t)
	workflow := seedWorkflow(t, ctx, store)

	entityID := uuid.NewString()
	request := &models.ApprovalRequest{
		ID:                uuid.NewString(),
		WorkflowID:        workflow.ID,
		EntityType:        "Agent",
		EntityID:          entityID,
		RequestedBy:       "requester-1",
		RequestedAt:       time.Now().UTC(),
		CurrentStageOrder: 1,
		Status:            models.RequestStatusPending,
	}
	require.NoError(t, store.RequestRepository().Create(ctx, request))

	// The partial unique index refuses a second pending request.
	duplicate := *request
	duplicate.ID = uuid.NewString()
	err := store.RequestRepository().Create(ctx, &duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicatePendingRequest)

	// After finalization the entity may be submitted again.
	require.NoError(t, store.RequestRepository().MarkApproved(ctx, request.ID, "admin-1", time.Now().UTC()))

	duplicate.ID = uuid.NewString()
	assert.NoError(t, store.RequestRepository().Create(ctx, &duplicate))
}

func TestIntegration_GuardedDecision(t *testing.T) {
	store, ctx := setupTestDB(t)
	workflow := seedWorkflow(t, ctx, store)

	request := &models.ApprovalRequest{
		ID:                uuid.NewString(),
		WorkflowID:        workflow.ID,
		EntityType:        "Agent",
		EntityID:          uuid.NewString(),
		RequestedBy:       "requester-1",
		RequestedAt:       time.Now().UTC(),
		CurrentStageOrder: 1,
		Status:            models.RequestStatusPending,
	}
	require.NoError(t, store.RequestRepository().Create(ctx, request))

	execution := &models.StageExecution{
		ID:         uuid.NewString(),
		RequestID:  request.ID,
		StageID:    workflow.Stages[0].ID,
		StageOrder: 1,
		Status:     models.ExecutionStatusPending,
	}
	require.NoError(t, store.ExecutionRepository().CreateBatch(ctx, []*models.StageExecution{execution}))

	now := time.Now().UTC()
	err := store.ExecutionRepository().MarkDecided(ctx, execution.ID, models.ExecutionStatusApproved, models.DecisionApprove, "admin-1", now, "")
	require.NoError(t, err)

	err = store.ExecutionRepository().MarkDecided(ctx, execution.ID, models.ExecutionStatusRejected, models.DecisionReject, "admin-1", now, "")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotPending)
}

func TestIntegration_TransactionRollback(t *testing.T) {
	store, ctx := setupTestDB(t)
	workflow := seedWorkflow(t, ctx, store)

	entityID := uuid.NewString()
	err := store.Transaction(ctx, func(repos persistence.Repositories) error {
		request := &models.ApprovalRequest{
			ID:                uuid.NewString(),
			WorkflowID:        workflow.ID,
			EntityType:        "Agent",
			EntityID:          entityID,
			RequestedBy:       "requester-1",
			RequestedAt:       time.Now().UTC(),
			CurrentStageOrder: 1,
			Status:            models.RequestStatusPending,
		}
		if err := repos.RequestRepository().Create(ctx, request); err != nil {
			return err
		}

		return assert.AnError
	})
	require.Error(t, err)

	_, err = store.RequestRepository().GetPendingByEntity(ctx, "Agent", entityID)
	assert.ErrorIs(t, err, persistence.ErrRequestNotFound)
}
