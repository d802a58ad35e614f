// Package directory implements the admin business directory: filtering the
// tenant list, picking a record for the detail view, and turning detail-view
// edits into pending changes for the persistence layer.
package directory

import (
	"strings"

	"github.com/google/uuid"

	"swimdesk/internal/models"
	"swimdesk/internal/tiers"
)

// All matches every status or tier.
const All = "all"

// Criteria are the operator's search inputs. Empty Status or Tier behave
// like All.
type Criteria struct {
	SearchTerm string `query:"search" json:"search"`
	Status     string `query:"status" json:"status"`
	Tier       string `query:"tier" json:"tier"`
}

// Filter returns the records matching every criterion, in input order. The
// search term matches case-insensitively against business name, owner name
// and owner email. The result is never nil.
func Filter(businesses []*models.Business, c Criteria) []*models.Business {
	term := strings.ToLower(strings.TrimSpace(c.SearchTerm))
	status := strings.ToLower(strings.TrimSpace(c.Status))
	tier := strings.ToLower(strings.TrimSpace(c.Tier))

	out := make([]*models.Business, 0, len(businesses))
	for _, b := range businesses {
		if b == nil {
			continue
		}
		if term != "" && !matchesSearch(b, term) {
			continue
		}
		if status != "" && status != All && status != string(b.Status) {
			continue
		}
		if tier != "" && tier != All && tier != b.Tier.String() {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchesSearch(b *models.Business, term string) bool {
	return strings.Contains(strings.ToLower(b.Name), term) ||
		strings.Contains(strings.ToLower(b.Owner.Name), term) ||
		strings.Contains(strings.ToLower(b.Owner.Email), term)
}

// SelectForDetail finds the record with the given id.
func SelectForDetail(businesses []*models.Business, id uuid.UUID) (*models.Business, bool) {
	for _, b := range businesses {
		if b != nil && b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// ValidCriteria reports whether status and tier name known values (or All).
func ValidCriteria(c Criteria) bool {
	status := strings.ToLower(strings.TrimSpace(c.Status))
	if status != "" && status != All && !models.BusinessStatus(status).Valid() {
		return false
	}
	tier := strings.ToLower(strings.TrimSpace(c.Tier))
	if tier != "" && tier != All {
		if _, ok := tiers.ParseTier(tier); !ok {
			return false
		}
	}
	return true
}
