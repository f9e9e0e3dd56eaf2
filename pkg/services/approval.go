package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coopcore/approvals/pkg/eventbus"
	"github.com/coopcore/approvals/pkg/events"
	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/otelhelper"
	"github.com/coopcore/approvals/pkg/persistence"
	"github.com/coopcore/approvals/pkg/resolver"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ApprovalConfig carries the policy knobs of the orchestrator.
type ApprovalConfig struct {
	// AllowUnassignedDecisions lets any reviewer decide an execution whose
	// approver resolution came up empty. Default true, matching the
	// permissive behavior the engine was extracted from.
	AllowUnassignedDecisions bool
}

// DefaultApprovalConfig returns the default orchestrator policy.
func DefaultApprovalConfig() ApprovalConfig {
	return ApprovalConfig{AllowUnassignedDecisions: true}
}

// Approval is the approval orchestrator: request submission, per-stage
// decision processing and the read paths over both.
type Approval struct {
	persistence persistence.Persistence
	resolver    *resolver.Resolver
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer
	config      ApprovalConfig
}

// NewApproval creates the approval orchestrator.
func NewApproval(
	persistence persistence.Persistence,
	resolver *resolver.Resolver,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	config ApprovalConfig,
) *Approval {
	return &Approval{
		persistence: persistence,
		resolver:    resolver,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
		tracer:      otel.Tracer("coopcore.approvals"),
		config:      config,
	}
}

// SubmitRequest is the inbound payload for starting an approval workflow
// against a business entity.
type SubmitRequest struct {
	WorkflowCode string                  `json:"workflow_code" validate:"required"`
	EntityType   string                  `json:"entity_type"   validate:"required"`
	EntityID     string                  `json:"entity_id"     validate:"required"`
	Context      models.HierarchyContext `json:"context"`
	RequestedBy  string                  `json:"requested_by"  validate:"required"`
}

// SubmitResult is the persisted aggregate returned by Submit.
type SubmitResult struct {
	Request    *models.ApprovalRequest  `json:"request"`
	Executions []*models.StageExecution `json:"executions"`
}

// Submit creates an approval request and one stage execution per stage
// definition, atomically. Approver resolution runs before the transaction;
// a stage whose resolution yields nobody is created unassigned rather than
// failing the submission.
func (a *Approval) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "approval.submit",
		attribute.String(otelhelper.WorkflowCodeKey, req.WorkflowCode),
		attribute.String(otelhelper.EntityTypeKey, req.EntityType),
		attribute.String(otelhelper.EntityIDKey, req.EntityID),
	)
	defer span.End()

	result, err := a.submit(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.RequestIDKey, result.Request.ID))

	return result, nil
}

func (a *Approval) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	workflow, err := a.persistence.WorkflowRepository().GetByCode(ctx, req.WorkflowCode)
	if err != nil {
		return nil, err
	}

	if !workflow.IsActive {
		return nil, ErrWorkflowInactive
	}

	stages, err := a.persistence.WorkflowRepository().GetStages(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	if len(stages) == 0 {
		return nil, ErrWorkflowHasNoStages
	}

	_, err = a.persistence.RequestRepository().GetPendingByEntity(ctx, req.EntityType, req.EntityID)
	if err == nil {
		return nil, ErrRequestAlreadyPending
	}

	if !persistence.IsRequestNotFound(err) {
		return nil, err
	}

	approvers := a.resolveApprovers(ctx, stages, req.Context)

	request := &models.ApprovalRequest{
		ID:                uuid.NewString(),
		WorkflowID:        workflow.ID,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		Context:           req.Context,
		RequestedBy:       req.RequestedBy,
		RequestedAt:       time.Now().UTC(),
		CurrentStageOrder: 1,
		Status:            models.RequestStatusPending,
	}

	executions := make([]*models.StageExecution, 0, len(stages))

	for i, stage := range stages {
		execution := &models.StageExecution{
			ID:         uuid.NewString(),
			RequestID:  request.ID,
			StageID:    stage.ID,
			StageOrder: stage.StageOrder,
			Status:     models.ExecutionStatusPending,
		}

		if approvers[i] != "" {
			approver := approvers[i]
			execution.AssignedApproverID = &approver
		}

		executions = append(executions, execution)
	}

	err = a.persistence.Transaction(ctx, func(repos persistence.Repositories) error {
		if err := repos.RequestRepository().Create(ctx, request); err != nil {
			if errors.Is(err, persistence.ErrDuplicatePendingRequest) {
				// A concurrent submission won the race after our check.
				return ErrRequestAlreadyPending
			}

			return err
		}

		return repos.ExecutionRepository().CreateBatch(ctx, executions)
	})
	if err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "approval request submitted",
		"request_id", request.ID,
		"workflow_code", workflow.Code,
		"entity_type", request.EntityType,
		"entity_id", request.EntityID,
		"stages", len(executions),
	)

	return &SubmitResult{Request: request, Executions: executions}, nil
}

// resolveApprovers resolves every stage's approver. Resolutions are
// independent, so they fan out and join before the transaction starts.
func (a *Approval) resolveApprovers(ctx context.Context, stages []*models.StageDefinition, reqContext models.HierarchyContext) []string {
	approvers := make([]string, len(stages))

	var wg sync.WaitGroup

	for i, stage := range stages {
		wg.Add(1)

		go func(i int, stage *models.StageDefinition) {
			defer wg.Done()

			approvers[i] = a.resolver.Resolve(ctx, stage, reqContext)
		}(i, stage)
	}

	wg.Wait()

	return approvers
}

// DecisionRequest is the inbound payload for deciding one stage execution.
type DecisionRequest struct {
	ExecutionID string          `json:"execution_id" validate:"required"`
	Decision    models.Decision `json:"decision"     validate:"required,oneof=approve reject"`
	ReviewedBy  string          `json:"reviewed_by"  validate:"required"`
	Comments    string          `json:"comments"`
}

// DecisionResult carries the post-decision state of the execution and its
// request.
type DecisionResult struct {
	Execution *models.StageExecution  `json:"execution"`
	Request   *models.ApprovalRequest `json:"request"`
}

// outcome captures a terminal transition decided inside the transaction so
// the event can be published after commit.
type outcome struct {
	approved     bool
	rejected     bool
	workflowCode string
	actor        string
	reason       string
	actedAt      time.Time
}

// ProcessDecision applies one reviewer decision. All stage executions exist
// from submission time, so decisions may arrive in any stage order; the
// request's stage pointer tracks progress but gates nothing. Completion is
// recomputed inside the transaction from a fresh read of all executions.
func (a *Approval) ProcessDecision(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "approval.process_decision",
		attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
		attribute.String(otelhelper.DecisionKey, string(req.Decision)),
		attribute.String(otelhelper.ReviewerKey, req.ReviewedBy),
	)
	defer span.End()

	result, err := a.processDecision(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

func (a *Approval) processDecision(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	execution, err := a.persistence.ExecutionRepository().GetByID(ctx, req.ExecutionID)
	if err != nil {
		return nil, err
	}

	if execution.IsTerminal() {
		return nil, ErrExecutionAlreadyDecided
	}

	if err := a.authorizeReviewer(execution, req.ReviewedBy); err != nil {
		return nil, err
	}

	request, err := a.persistence.RequestRepository().GetByID(ctx, execution.RequestID)
	if err != nil {
		return nil, err
	}

	if request.IsTerminal() {
		return nil, ErrRequestAlreadyFinalized
	}

	var result outcome

	err = a.persistence.Transaction(ctx, func(repos persistence.Repositories) error {
		return a.applyDecision(ctx, repos, request, execution.ID, req, &result)
	})
	if err != nil {
		return nil, err
	}

	a.publishOutcome(ctx, request, result)

	execution, err = a.persistence.ExecutionRepository().GetByID(ctx, req.ExecutionID)
	if err != nil {
		return nil, err
	}

	request, err = a.persistence.RequestRepository().GetByID(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	return &DecisionResult{Execution: execution, Request: request}, nil
}

func (a *Approval) authorizeReviewer(execution *models.StageExecution, reviewedBy string) error {
	if execution.IsAssigned() {
		if *execution.AssignedApproverID != reviewedBy {
			return ErrNotAssignedApprover
		}

		return nil
	}

	if !a.config.AllowUnassignedDecisions {
		return ErrUnassignedNotAllowed
	}

	return nil
}

// applyDecision performs the in-transaction state transitions and records
// any terminal outcome in result.
func (a *Approval) applyDecision(
	ctx context.Context,
	repos persistence.Repositories,
	request *models.ApprovalRequest,
	executionID string,
	req DecisionRequest,
	result *outcome,
) error {
	workflow, err := repos.WorkflowRepository().GetByID(ctx, request.WorkflowID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	executionStatus := models.ExecutionStatusApproved
	if req.Decision == models.DecisionReject {
		executionStatus = models.ExecutionStatusRejected
	}

	err = repos.ExecutionRepository().MarkDecided(ctx, executionID, executionStatus, req.Decision, req.ReviewedBy, now, req.Comments)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotPending) {
			// A concurrent decision landed first.
			return ErrExecutionAlreadyDecided
		}

		return err
	}

	result.workflowCode = workflow.Code
	result.actor = req.ReviewedBy
	result.reason = req.Comments
	result.actedAt = now

	if req.Decision == models.DecisionReject {
		err = repos.RequestRepository().MarkRejected(ctx, request.ID, req.ReviewedBy, now, req.Comments)
		if err != nil {
			if errors.Is(err, persistence.ErrRequestNotPending) {
				return ErrRequestAlreadyFinalized
			}

			return err
		}

		result.rejected = true

		return nil
	}

	// Fresh in-transaction read: completion must never be derived from a
	// cached execution set.
	executionsNow, err := repos.ExecutionRepository().ListByRequest(ctx, request.ID)
	if err != nil {
		return err
	}

	allApproved := true
	currentStageApproved := false

	for _, exec := range executionsNow {
		if !exec.IsSatisfied() {
			allApproved = false
		}

		if exec.StageOrder == request.CurrentStageOrder && exec.Status == models.ExecutionStatusApproved {
			currentStageApproved = true
		}
	}

	if allApproved || (!workflow.RequiresAllStages && currentStageApproved) {
		err = repos.RequestRepository().MarkApproved(ctx, request.ID, req.ReviewedBy, now)
		if err != nil {
			if errors.Is(err, persistence.ErrRequestNotPending) {
				return ErrRequestAlreadyFinalized
			}

			return err
		}

		result.approved = true

		return nil
	}

	err = repos.RequestRepository().AdvanceStagePointer(ctx, request.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrRequestNotPending) {
			return ErrRequestAlreadyFinalized
		}

		return err
	}

	return nil
}

// publishOutcome emits the terminal event after the transaction committed.
// Emission failures are logged and swallowed: the state transition already
// happened and must not appear failed to the caller.
func (a *Approval) publishOutcome(ctx context.Context, request *models.ApprovalRequest, result outcome) {
	if !result.approved && !result.rejected {
		return
	}

	var event eventbus.Event

	base := events.BaseEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}

	if result.approved {
		base.Type = events.RequestApprovedEvent
		event = events.RequestApproved{
			BaseEvent:    base,
			RequestID:    request.ID,
			WorkflowCode: result.workflowCode,
			EntityType:   request.EntityType,
			EntityID:     request.EntityID,
			ActorUserID:  result.actor,
			ActedAt:      result.actedAt,
		}
	} else {
		base.Type = events.RequestRejectedEvent
		event = events.RequestRejected{
			BaseEvent:    base,
			RequestID:    request.ID,
			WorkflowCode: result.workflowCode,
			EntityType:   request.EntityType,
			EntityID:     request.EntityID,
			ActorUserID:  result.actor,
			ActedAt:      result.actedAt,
			Reason:       result.reason,
		}
	}

	err := a.eventBus.Publish(ctx, request.ID, event)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to publish approval outcome event",
			"request_id", request.ID, "event_type", event.GetType(), "error", err)
	}
}

// RequestDetails aggregates a request with its executions and, when
// loaded, its workflow definition.
type RequestDetails struct {
	Request    *models.ApprovalRequest    `json:"request"`
	Executions []*models.StageExecution   `json:"executions"`
	Workflow   *models.WorkflowDefinition `json:"workflow,omitempty"`
}

// PendingForApprover lists the pending stage executions assigned to a reviewer.
func (a *Approval) PendingForApprover(ctx context.Context, approverID string) ([]*models.StageExecution, error) {
	return a.persistence.ExecutionRepository().ListPendingByApprover(ctx, approverID)
}

// RequestByEntity returns the pending request for an entity together with
// its executions, or nil when the entity has nothing in flight.
func (a *Approval) RequestByEntity(ctx context.Context, entityType, entityID string) (*RequestDetails, error) {
	request, err := a.persistence.RequestRepository().GetPendingByEntity(ctx, entityType, entityID)
	if err != nil {
		if persistence.IsRequestNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	executions, err := a.persistence.ExecutionRepository().ListByRequest(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	return &RequestDetails{Request: request, Executions: executions}, nil
}

// RequestByID returns a request with its executions and workflow definition.
func (a *Approval) RequestByID(ctx context.Context, id string) (*RequestDetails, error) {
	request, err := a.persistence.RequestRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	executions, err := a.persistence.ExecutionRepository().ListByRequest(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	workflow, err := a.persistence.WorkflowRepository().GetByID(ctx, request.WorkflowID)
	if err != nil {
		return nil, err
	}

	return &RequestDetails{Request: request, Executions: executions, Workflow: workflow}, nil
}

// PendingCounts returns the reviewer's pending execution counts grouped by
// workflow code.
func (a *Approval) PendingCounts(ctx context.Context, approverID string) ([]persistence.PendingCount, error) {
	return a.persistence.ExecutionRepository().CountPendingByApprover(ctx, approverID)
}
