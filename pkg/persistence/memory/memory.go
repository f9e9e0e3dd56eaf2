// Package memory provides an in-memory persistence implementation for unit
// tests and local development. A single mutex serializes units of work, and
// transactions restore a snapshot on error, mirroring the rollback
// guarantees of the SQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence"
)

type data struct {
	workflows  map[string]*models.WorkflowDefinition // by id, stages attached
	codeIndex  map[string]string                     // code -> id
	requests   map[string]*models.ApprovalRequest
	executions map[string]*models.StageExecution
}

func newData() *data {
	return &data{
		workflows:  make(map[string]*models.WorkflowDefinition),
		codeIndex:  make(map[string]string),
		requests:   make(map[string]*models.ApprovalRequest),
		executions: make(map[string]*models.StageExecution),
	}
}

func (d *data) clone() *data {
	cloned := newData()

	for id, workflow := range d.workflows {
		cloned.workflows[id] = cloneWorkflow(workflow)
	}

	for code, id := range d.codeIndex {
		cloned.codeIndex[code] = id
	}

	for id, request := range d.requests {
		cloned.requests[id] = cloneRequest(request)
	}

	for id, execution := range d.executions {
		cloned.executions[id] = cloneExecution(execution)
	}

	return cloned
}

// Persistence implements persistence.Persistence on process memory.
type Persistence struct {
	mu   sync.Mutex
	data *data
}

func NewPersistence() *Persistence {
	return &Persistence{data: newData()}
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{store: p}
}

func (p *Persistence) RequestRepository() persistence.RequestRepository {
	return &requestRepository{store: p}
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return &executionRepository{store: p}
}

// Transaction runs fn under the store lock against repositories that skip
// locking. On error the pre-transaction snapshot is restored.
func (p *Persistence) Transaction(_ context.Context, fn func(persistence.Repositories) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.data.clone()

	err := fn(&txRepositories{store: p})
	if err != nil {
		p.data = snapshot

		return err
	}

	return nil
}

type txRepositories struct {
	store *Persistence
}

func (t *txRepositories) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{store: t.store, inTx: true}
}

func (t *txRepositories) RequestRepository() persistence.RequestRepository {
	return &requestRepository{store: t.store, inTx: true}
}

func (t *txRepositories) ExecutionRepository() persistence.ExecutionRepository {
	return &executionRepository{store: t.store, inTx: true}
}

// lock acquires the store mutex unless the caller already holds it through
// an open transaction.
func (p *Persistence) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}

	p.mu.Lock()

	return p.mu.Unlock
}

// Workflow repository

type workflowRepository struct {
	store *Persistence
	inTx  bool
}

func (wr *workflowRepository) GetByCode(_ context.Context, code string) (*models.WorkflowDefinition, error) {
	defer wr.store.lock(wr.inTx)()

	id, ok := wr.store.data.codeIndex[code]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return cloneWorkflow(wr.store.data.workflows[id]), nil
}

func (wr *workflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	defer wr.store.lock(wr.inTx)()

	workflow, ok := wr.store.data.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return cloneWorkflow(workflow), nil
}

func (wr *workflowRepository) GetStages(_ context.Context, workflowID string) ([]*models.StageDefinition, error) {
	defer wr.store.lock(wr.inTx)()

	workflow, ok := wr.store.data.workflows[workflowID]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	stages := make([]*models.StageDefinition, 0, len(workflow.Stages))
	for _, stage := range workflow.Stages {
		cloned := *stage
		stages = append(stages, &cloned)
	}

	sort.Slice(stages, func(i, j int) bool {
		return stages[i].StageOrder < stages[j].StageOrder
	})

	return stages, nil
}

func (wr *workflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	defer wr.store.lock(wr.inTx)()

	if existingID, ok := wr.store.data.codeIndex[workflow.Code]; ok {
		workflow.ID = existingID
	}

	for _, stage := range workflow.Stages {
		stage.WorkflowID = workflow.ID
	}

	wr.store.data.workflows[workflow.ID] = cloneWorkflow(workflow)
	wr.store.data.codeIndex[workflow.Code] = workflow.ID

	return nil
}

func (wr *workflowRepository) List(_ context.Context) ([]*models.WorkflowDefinition, error) {
	defer wr.store.lock(wr.inTx)()

	workflows := make([]*models.WorkflowDefinition, 0, len(wr.store.data.workflows))
	for _, workflow := range wr.store.data.workflows {
		workflows = append(workflows, cloneWorkflow(workflow))
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].Code < workflows[j].Code
	})

	return workflows, nil
}

// Request repository

type requestRepository struct {
	store *Persistence
	inTx  bool
}

func (rr *requestRepository) Create(_ context.Context, request *models.ApprovalRequest) error {
	defer rr.store.lock(rr.inTx)()

	for _, existing := range rr.store.data.requests {
		if existing.EntityType == request.EntityType &&
			existing.EntityID == request.EntityID &&
			existing.Status == models.RequestStatusPending {
			return persistence.ErrDuplicatePendingRequest
		}
	}

	rr.store.data.requests[request.ID] = cloneRequest(request)

	return nil
}

func (rr *requestRepository) GetByID(_ context.Context, id string) (*models.ApprovalRequest, error) {
	defer rr.store.lock(rr.inTx)()

	return rr.getLocked(id)
}

func (rr *requestRepository) getLocked(id string) (*models.ApprovalRequest, error) {
	request, ok := rr.store.data.requests[id]
	if !ok {
		return nil, persistence.ErrRequestNotFound
	}

	return cloneRequest(request), nil
}

func (rr *requestRepository) GetPendingByEntity(_ context.Context, entityType, entityID string) (*models.ApprovalRequest, error) {
	defer rr.store.lock(rr.inTx)()

	var newest *models.ApprovalRequest

	for _, request := range rr.store.data.requests {
		if request.EntityType != entityType || request.EntityID != entityID {
			continue
		}

		if request.Status != models.RequestStatusPending {
			continue
		}

		if newest == nil || request.RequestedAt.After(newest.RequestedAt) {
			newest = request
		}
	}

	if newest == nil {
		return nil, persistence.ErrRequestNotFound
	}

	return cloneRequest(newest), nil
}

func (rr *requestRepository) MarkApproved(_ context.Context, id, approvedBy string, approvedAt time.Time) error {
	defer rr.store.lock(rr.inTx)()

	request, err := rr.pendingLocked(id)
	if err != nil {
		return err
	}

	request.Status = models.RequestStatusApproved
	request.ApprovedBy = approvedBy
	request.ApprovedAt = &approvedAt

	return nil
}

func (rr *requestRepository) MarkRejected(_ context.Context, id, rejectedBy string, rejectedAt time.Time, reason string) error {
	defer rr.store.lock(rr.inTx)()

	request, err := rr.pendingLocked(id)
	if err != nil {
		return err
	}

	request.Status = models.RequestStatusRejected
	request.RejectedBy = rejectedBy
	request.RejectedAt = &rejectedAt
	request.RejectionReason = reason

	return nil
}

func (rr *requestRepository) AdvanceStagePointer(_ context.Context, id string) error {
	defer rr.store.lock(rr.inTx)()

	request, err := rr.pendingLocked(id)
	if err != nil {
		return err
	}

	request.CurrentStageOrder++

	return nil
}

func (rr *requestRepository) pendingLocked(id string) (*models.ApprovalRequest, error) {
	request, ok := rr.store.data.requests[id]
	if !ok {
		return nil, persistence.ErrRequestNotFound
	}

	if request.Status != models.RequestStatusPending {
		return nil, persistence.ErrRequestNotPending
	}

	return request, nil
}

// Execution repository

type executionRepository struct {
	store *Persistence
	inTx  bool
}

func (er *executionRepository) CreateBatch(_ context.Context, executions []*models.StageExecution) error {
	defer er.store.lock(er.inTx)()

	for _, execution := range executions {
		er.store.data.executions[execution.ID] = cloneExecution(execution)
	}

	return nil
}

func (er *executionRepository) GetByID(_ context.Context, id string) (*models.StageExecution, error) {
	defer er.store.lock(er.inTx)()

	execution, ok := er.store.data.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return cloneExecution(execution), nil
}

func (er *executionRepository) ListByRequest(_ context.Context, requestID string) ([]*models.StageExecution, error) {
	defer er.store.lock(er.inTx)()

	var executions []*models.StageExecution

	for _, execution := range er.store.data.executions {
		if execution.RequestID == requestID {
			executions = append(executions, cloneExecution(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StageOrder < executions[j].StageOrder
	})

	return executions, nil
}

func (er *executionRepository) MarkDecided(_ context.Context, id string, status models.ExecutionStatus, decision models.Decision, reviewedBy string, reviewedAt time.Time, comments string) error {
	defer er.store.lock(er.inTx)()

	execution, ok := er.store.data.executions[id]
	if !ok {
		return persistence.ErrExecutionNotFound
	}

	if execution.Status != models.ExecutionStatusPending {
		return persistence.ErrExecutionNotPending
	}

	execution.Status = status
	execution.Decision = decision
	execution.ReviewedBy = reviewedBy
	execution.ReviewedAt = &reviewedAt
	execution.Comments = comments

	return nil
}

func (er *executionRepository) ListPendingByApprover(_ context.Context, approverID string) ([]*models.StageExecution, error) {
	defer er.store.lock(er.inTx)()

	var executions []*models.StageExecution

	for _, execution := range er.store.data.executions {
		if execution.Status != models.ExecutionStatusPending {
			continue
		}

		if execution.IsAssigned() && *execution.AssignedApproverID == approverID {
			executions = append(executions, cloneExecution(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StageOrder < executions[j].StageOrder
	})

	return executions, nil
}

func (er *executionRepository) CountPendingByApprover(_ context.Context, approverID string) ([]persistence.PendingCount, error) {
	defer er.store.lock(er.inTx)()

	counts := make(map[string]int)

	for _, execution := range er.store.data.executions {
		if execution.Status != models.ExecutionStatusPending {
			continue
		}

		if !execution.IsAssigned() || *execution.AssignedApproverID != approverID {
			continue
		}

		request, ok := er.store.data.requests[execution.RequestID]
		if !ok {
			continue
		}

		workflow, ok := er.store.data.workflows[request.WorkflowID]
		if !ok {
			continue
		}

		counts[workflow.Code]++
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	result := make([]persistence.PendingCount, 0, len(codes))
	for _, code := range codes {
		result = append(result, persistence.PendingCount{WorkflowCode: code, Count: counts[code]})
	}

	return result, nil
}

// Clone helpers keep callers from aliasing stored state.

func cloneWorkflow(workflow *models.WorkflowDefinition) *models.WorkflowDefinition {
	cloned := *workflow
	cloned.Stages = make([]*models.StageDefinition, 0, len(workflow.Stages))

	for _, stage := range workflow.Stages {
		stageCopy := *stage
		cloned.Stages = append(cloned.Stages, &stageCopy)
	}

	return &cloned
}

func cloneRequest(request *models.ApprovalRequest) *models.ApprovalRequest {
	cloned := *request

	if request.ApprovedAt != nil {
		at := *request.ApprovedAt
		cloned.ApprovedAt = &at
	}

	if request.RejectedAt != nil {
		at := *request.RejectedAt
		cloned.RejectedAt = &at
	}

	return &cloned
}

func cloneExecution(execution *models.StageExecution) *models.StageExecution {
	cloned := *execution

	if execution.AssignedApproverID != nil {
		approver := *execution.AssignedApproverID
		cloned.AssignedApproverID = &approver
	}

	if execution.ReviewedAt != nil {
		at := *execution.ReviewedAt
		cloned.ReviewedAt = &at
	}

	return &cloned
}
