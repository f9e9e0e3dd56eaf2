// Package mocks provides testify mocks for collaborator interfaces.
package mocks

import (
	"context"

	"github.com/coopcore/approvals/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockHierarchyLookup is a mock implementation of the hierarchy.Lookup interface.
type MockHierarchyLookup struct {
	mock.Mock
}

func (m *MockHierarchyLookup) FindAdminUser(ctx context.Context, body models.OrganizationBody, entityID string) (string, error) {
	args := m.Called(ctx, body, entityID)

	return args.String(0), args.Error(1)
}
