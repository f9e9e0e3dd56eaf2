package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coopcore/approvals/pkg/hierarchy"
	"github.com/coopcore/approvals/pkg/mocks"
	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence/memory"
	"github.com/coopcore/approvals/pkg/resolver"
	"github.com/coopcore/approvals/pkg/services"
	"github.com/coopcore/approvals/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const agentRegistrationDocument = `{
	"code": "agent_registration",
	"name": "Agent Registration",
	"stages": [
		{"name": "Unit Admin Review", "stage_order": 1, "approver_type": "hierarchy", "organization_body": "unit"},
		{"name": "Area Admin Review", "stage_order": 2, "approver_type": "hierarchy", "organization_body": "area"}
	]
}`

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()

	lookup := hierarchy.NewStatic()
	lookup.SetAdmin(models.OrganizationBodyUnit, "U1", "unit-admin")
	lookup.SetAdmin(models.OrganizationBodyArea, "AR1", "area-admin")

	eventBus := &mocks.MockEventBus{}
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	approvalService := services.NewApproval(
		store,
		resolver.NewResolver(lookup, logger),
		eventBus,
		logger,
		services.DefaultApprovalConfig(),
	)

	definitionService, err := services.NewDefinition(store, logger)
	require.NoError(t, err)

	handlers := web.NewAPIHandlers(
		approvalService,
		definitionService,
		store,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()

	approvals := app.Group("/approvals")
	approvals.Post("/", handlers.SubmitApproval)
	approvals.Post("/executions/:id/decision", handlers.DecideExecution)
	approvals.Get("/pending", handlers.GetPendingExecutions)
	approvals.Get("/pending/count", handlers.GetPendingCounts)
	approvals.Get("/entity/:entityType/:entityId", handlers.GetRequestByEntity)
	approvals.Get("/:id", handlers.GetRequest)

	workflows := app.Group("/workflows")
	workflows.Post("/", handlers.ImportWorkflow)
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Get("/:code", handlers.GetWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body []byte) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func getPath(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	return resp
}

func importAgentRegistration(t *testing.T, app *fiber.App) {
	t.Helper()

	resp := postJSON(t, app, "/workflows/", []byte(agentRegistrationDocument))
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func submitAgent(t *testing.T, app *fiber.App) *services.SubmitResult {
	t.Helper()

	payload, err := json.Marshal(web.SubmitApprovalRequest{
		WorkflowCode: "agent_registration",
		EntityType:   "Agent",
		EntityID:     "A1",
		Context:      models.HierarchyContext{UnitID: "U1", AreaID: "AR1"},
		RequestedBy:  "requester-1",
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/approvals/", payload)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result services.SubmitResult
	require.NoError(t, json.Unmarshal(body, &result))

	return &result
}

func TestAPIHandlers_SubmitApproval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful submission",
			requestBody: web.SubmitApprovalRequest{
				WorkflowCode: "agent_registration",
				EntityType:   "Agent",
				EntityID:     "A1",
				Context:      models.HierarchyContext{UnitID: "U1", AreaID: "AR1"},
				RequestedBy:  "requester-1",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing entity",
			requestBody: web.SubmitApprovalRequest{
				WorkflowCode: "agent_registration",
				RequestedBy:  "requester-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown workflow",
			requestBody: web.SubmitApprovalRequest{
				WorkflowCode: "missing_workflow",
				EntityType:   "Agent",
				EntityID:     "A1",
				RequestedBy:  "requester-1",
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)
			importAgentRegistration(t, app)

			var (
				body []byte
				err  error
			)

			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			resp := postJSON(t, app, "/approvals/", body)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_SubmitApproval_DuplicatePending(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)
	submitAgent(t, app)

	payload, err := json.Marshal(web.SubmitApprovalRequest{
		WorkflowCode: "agent_registration",
		EntityType:   "Agent",
		EntityID:     "A1",
		RequestedBy:  "requester-2",
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/approvals/", payload)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_DecideExecution(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)
	result := submitAgent(t, app)

	payload, err := json.Marshal(web.DecideExecutionRequest{
		Decision:   "approve",
		ReviewedBy: "unit-admin",
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/approvals/executions/"+result.Executions[0].ID+"/decision", payload)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decision services.DecisionResult
	require.NoError(t, json.Unmarshal(body, &decision))
	assert.Equal(t, models.ExecutionStatusApproved, decision.Execution.Status)
	assert.Equal(t, 2, decision.Request.CurrentStageOrder)
}

func TestAPIHandlers_DecideExecution_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		executionID    func(result *services.SubmitResult) string
		requestBody    web.DecideExecutionRequest
		expectedStatus int
	}{
		{
			name:        "wrong reviewer is forbidden",
			executionID: func(result *services.SubmitResult) string { return result.Executions[0].ID },
			requestBody: web.DecideExecutionRequest{
				Decision:   "approve",
				ReviewedBy: "somebody-else",
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:        "unknown execution",
			executionID: func(_ *services.SubmitResult) string { return "00000000-0000-0000-0000-000000000000" },
			requestBody: web.DecideExecutionRequest{
				Decision:   "approve",
				ReviewedBy: "unit-admin",
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "invalid decision value",
			executionID: func(result *services.SubmitResult) string { return result.Executions[0].ID },
			requestBody: web.DecideExecutionRequest{
				Decision:   "maybe",
				ReviewedBy: "unit-admin",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)
			importAgentRegistration(t, app)
			result := submitAgent(t, app)

			payload, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			resp := postJSON(t, app, "/approvals/executions/"+tt.executionID(result)+"/decision", payload)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_GetPendingExecutions(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)
	submitAgent(t, app)

	resp := getPath(t, app, "/approvals/pending?approver_id=unit-admin")
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Executions []*models.StageExecution `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Len(t, payload.Executions, 1)

	missing := getPath(t, app, "/approvals/pending")
	defer func() { _ = missing.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestAPIHandlers_GetRequestByEntity(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)
	result := submitAgent(t, app)

	resp := getPath(t, app, "/approvals/entity/Agent/A1")
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var details services.RequestDetails
	require.NoError(t, json.Unmarshal(body, &details))
	assert.Equal(t, result.Request.ID, details.Request.ID)
	assert.Len(t, details.Executions, 2)

	none := getPath(t, app, "/approvals/entity/Agent/A2")
	defer func() { _ = none.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, none.StatusCode)
}

func TestAPIHandlers_GetRequest(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)
	result := submitAgent(t, app)

	resp := getPath(t, app, "/approvals/"+result.Request.ID)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var details services.RequestDetails
	require.NoError(t, json.Unmarshal(body, &details))
	require.NotNil(t, details.Workflow)
	assert.Equal(t, "agent_registration", details.Workflow.Code)

	missing := getPath(t, app, "/approvals/unknown-id")
	defer func() { _ = missing.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPIHandlers_Workflows(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	importAgentRegistration(t, app)

	resp := getPath(t, app, "/workflows/agent_registration")
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var workflow models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Len(t, workflow.Stages, 2)

	missing := getPath(t, app, "/workflows/missing_workflow")
	defer func() { _ = missing.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	invalid := postJSON(t, app, "/workflows/", []byte(`{"code": "bad"}`))
	defer func() { _ = invalid.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, invalid.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := getPath(t, app, "/health")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
