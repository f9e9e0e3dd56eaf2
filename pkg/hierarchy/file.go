package hierarchy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/coopcore/approvals/pkg/models"
)

// NewStaticFromFile loads admin assignments from a JSON file shaped as
// {"unit": {"U1": "user-id"}, "area": {...}, "forum": {...}}.
func NewStaticFromFile(path string) (*Static, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy file: %w", err)
	}

	var assignments map[models.OrganizationBody]map[string]string

	err = json.Unmarshal(payload, &assignments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy file %s: %w", path, err)
	}

	static := NewStatic()

	for body, entities := range assignments {
		for entityID, userID := range entities {
			static.SetAdmin(body, entityID, userID)
		}
	}

	return static, nil
}
