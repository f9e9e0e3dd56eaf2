package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHierarchyContext_IDFor(t *testing.T) {
	ctx := HierarchyContext{
		ForumID: "forum-1",
		AreaID:  "area-1",
		UnitID:  "unit-1",
	}

	assert.Equal(t, "unit-1", ctx.IDFor(OrganizationBodyUnit))
	assert.Equal(t, "area-1", ctx.IDFor(OrganizationBodyArea))
	assert.Equal(t, "forum-1", ctx.IDFor(OrganizationBodyForum))
	assert.Empty(t, ctx.IDFor(OrganizationBody("district")))
}

func TestHierarchyContext_IDFor_MissingIDs(t *testing.T) {
	ctx := HierarchyContext{AreaID: "area-9"}

	assert.Empty(t, ctx.IDFor(OrganizationBodyUnit))
	assert.Equal(t, "area-9", ctx.IDFor(OrganizationBodyArea))
	assert.Empty(t, ctx.IDFor(OrganizationBodyForum))
}

func TestApprovalRequest_IsTerminal(t *testing.T) {
	tests := []struct {
		status   RequestStatus
		terminal bool
	}{
		{RequestStatusPending, false},
		{RequestStatusApproved, true},
		{RequestStatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			request := &ApprovalRequest{Status: tt.status}
			assert.Equal(t, tt.terminal, request.IsTerminal())
		})
	}
}

func TestStageExecution_IsSatisfied(t *testing.T) {
	tests := []struct {
		status    ExecutionStatus
		satisfied bool
	}{
		{ExecutionStatusPending, false},
		{ExecutionStatusApproved, true},
		{ExecutionStatusRejected, false},
		{ExecutionStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			execution := &StageExecution{Status: tt.status}
			assert.Equal(t, tt.satisfied, execution.IsSatisfied())
		})
	}
}

func TestStageExecution_IsAssigned(t *testing.T) {
	approver := "user-1"
	empty := ""

	assert.True(t, (&StageExecution{AssignedApproverID: &approver}).IsAssigned())
	assert.False(t, (&StageExecution{AssignedApproverID: &empty}).IsAssigned())
	assert.False(t, (&StageExecution{}).IsAssigned())
}
