package services

import (
	"testing"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/coopcore/approvals/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefinitionService(t *testing.T) (*Definition, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()

	service, err := NewDefinition(store, testLogger())
	require.NoError(t, err)

	return service, store
}

const agentRegistrationDocument = `{
	"code": "agent_registration",
	"name": "Agent Registration",
	"description": "Approves new collection agents.",
	"stages": [
		{"name": "Unit Admin Review", "stage_order": 1, "approver_type": "hierarchy", "organization_body": "unit"},
		{"name": "Area Admin Review", "stage_order": 2, "approver_type": "hierarchy", "organization_body": "area"},
		{"name": "Forum Treasurer Review", "stage_order": 3, "approver_type": "role", "role_id": "treasurer", "organization_body": "forum"}
	]
}`

func TestDefinition_Import(t *testing.T) {
	service, _ := newDefinitionService(t)

	workflow, err := service.Import(t.Context(), []byte(agentRegistrationDocument))
	require.NoError(t, err)

	assert.Equal(t, "agent_registration", workflow.Code)
	assert.True(t, workflow.IsActive)
	assert.True(t, workflow.RequiresAllStages)
	require.Len(t, workflow.Stages, 3)
	assert.Equal(t, models.ApproverTypeRole, workflow.Stages[2].ApproverType)
	assert.Equal(t, models.OrganizationBodyForum, workflow.Stages[2].OrganizationBody)

	fetched, err := service.FetchByCode(t.Context(), "agent_registration")
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, fetched.ID)
	assert.Len(t, fetched.Stages, 3)
}

func TestDefinition_Import_ReimportKeepsIdentity(t *testing.T) {
	service, _ := newDefinitionService(t)

	first, err := service.Import(t.Context(), []byte(agentRegistrationDocument))
	require.NoError(t, err)

	updated := `{
		"code": "agent_registration",
		"name": "Agent Registration v2",
		"requires_all_stages": false,
		"stages": [
			{"name": "Unit Admin Review", "stage_order": 1, "approver_type": "hierarchy", "organization_body": "unit"}
		]
	}`

	second, err := service.Import(t.Context(), []byte(updated))
	require.NoError(t, err)

	// Re-importing the same code updates the definition in place.
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.RequiresAllStages)

	fetched, err := service.FetchByCode(t.Context(), "agent_registration")
	require.NoError(t, err)
	assert.Equal(t, "Agent Registration v2", fetched.Name)
	assert.Len(t, fetched.Stages, 1)
}

func TestDefinition_Import_SchemaViolations(t *testing.T) {
	service, _ := newDefinitionService(t)

	tests := []struct {
		name     string
		document string
	}{
		{
			name:     "not json",
			document: `{"code": `,
		},
		{
			name:     "missing stages",
			document: `{"code": "x_wf", "name": "No Stages"}`,
		},
		{
			name:     "empty stages",
			document: `{"code": "x_wf", "name": "No Stages", "stages": []}`,
		},
		{
			name:     "invalid code characters",
			document: `{"code": "Agent Registration!", "name": "Bad Code", "stages": [{"stage_order": 1, "approver_type": "specific_user", "user_id": "u1"}]}`,
		},
		{
			name:     "unknown approver type",
			document: `{"code": "x_wf", "name": "Bad Approver", "stages": [{"stage_order": 1, "approver_type": "committee"}]}`,
		},
		{
			name:     "stage order below one",
			document: `{"code": "x_wf", "name": "Bad Order", "stages": [{"stage_order": 0, "approver_type": "specific_user", "user_id": "u1"}]}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Import(t.Context(), []byte(tc.document))
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestDefinition_Import_DuplicateStageOrder(t *testing.T) {
	service, _ := newDefinitionService(t)

	document := `{
		"code": "x_wf",
		"name": "Duplicate Orders",
		"stages": [
			{"stage_order": 1, "approver_type": "specific_user", "user_id": "u1"},
			{"stage_order": 1, "approver_type": "specific_user", "user_id": "u2"}
		]
	}`

	_, err := service.Import(t.Context(), []byte(document))
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "duplicate stage order")
}

func TestDefinition_Import_ApproverConstraints(t *testing.T) {
	service, _ := newDefinitionService(t)

	t.Run("specific user without user id", func(t *testing.T) {
		document := `{
			"code": "x_wf",
			"name": "Missing User",
			"stages": [{"stage_order": 1, "approver_type": "specific_user"}]
		}`

		_, err := service.Import(t.Context(), []byte(document))
		require.ErrorIs(t, err, ErrInvalidDefinition)
		assert.Contains(t, err.Error(), "user_id")
	})

	t.Run("hierarchy without organization body", func(t *testing.T) {
		document := `{
			"code": "x_wf",
			"name": "Missing Body",
			"stages": [{"stage_order": 1, "approver_type": "hierarchy"}]
		}`

		_, err := service.Import(t.Context(), []byte(document))
		require.ErrorIs(t, err, ErrInvalidDefinition)
		assert.Contains(t, err.Error(), "organization_body")
	})
}

func TestDefinition_List(t *testing.T) {
	service, _ := newDefinitionService(t)

	_, err := service.Import(t.Context(), []byte(agentRegistrationDocument))
	require.NoError(t, err)

	workflows, err := service.List(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "agent_registration", workflows[0].Code)
}
