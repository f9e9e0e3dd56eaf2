// Package hierarchy exposes the organizational-hierarchy collaborator used
// to find the administrator of a forum, area or unit. The authoritative
// directory lives in the membership module; this package only defines the
// boundary and thin adapters over it.
package hierarchy

import (
	"context"
	"errors"

	"github.com/coopcore/approvals/pkg/models"
)

// ErrAdminNotFound indicates the entity exists but has no administrator,
// or the entity itself is unknown to the directory.
var ErrAdminNotFound = errors.New("hierarchy admin not found")

// Lookup finds the administrator user of an organizational entity.
type Lookup interface {
	FindAdminUser(ctx context.Context, body models.OrganizationBody, entityID string) (string, error)
}
