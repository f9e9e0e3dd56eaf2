package hierarchy

import (
	"context"

	"github.com/coopcore/approvals/pkg/models"
)

// Static is a map-backed Lookup for local development and tests.
type Static struct {
	admins map[models.OrganizationBody]map[string]string
}

func NewStatic() *Static {
	return &Static{
		admins: make(map[models.OrganizationBody]map[string]string),
	}
}

// SetAdmin registers userID as the administrator of the given entity.
func (s *Static) SetAdmin(body models.OrganizationBody, entityID, userID string) {
	if s.admins[body] == nil {
		s.admins[body] = make(map[string]string)
	}

	s.admins[body][entityID] = userID
}

func (s *Static) FindAdminUser(_ context.Context, body models.OrganizationBody, entityID string) (string, error) {
	userID, ok := s.admins[body][entityID]
	if !ok {
		return "", ErrAdminNotFound
	}

	return userID, nil
}
