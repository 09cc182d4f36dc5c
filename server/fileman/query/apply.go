package query

import (
	"cmp"
	"slices"
	"strings"

	"filevault/server/fileman/domain"
)

// Matches evaluates the filtering clauses of p against one record. A plan
// without a leading visibility clause matches nothing.
func (p Plan) Matches(r domain.FileRecord) bool {
	if _, ok := p.Visibility(); !ok {
		return false
	}
	for _, c := range p.Clauses {
		switch c := c.(type) {
		case VisibilityClause:
			if !r.VisibleTo(domain.Identity{UserID: c.OwnerID, Email: c.Email}) {
				return false
			}
		case CategoryClause:
			if !slices.Contains(c.Categories, r.Category) {
				return false
			}
		case SearchClause:
			if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(c.Text)) {
				return false
			}
		}
	}
	return true
}

// Apply runs p over an in-memory record set: filter, sort, then limit. The
// input slice is not modified.
func (p Plan) Apply(records []domain.FileRecord) []domain.FileRecord {
	out := make([]domain.FileRecord, 0, len(records))
	for _, r := range records {
		if p.Matches(r) {
			out = append(out, r)
		}
	}

	s := p.Sort()
	slices.SortStableFunc(out, func(a, b domain.FileRecord) int {
		if c := compareBy(s.Field, a, b); c != 0 {
			if s.Direction == Desc {
				return -c
			}
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if n, ok := p.Limit(); ok && len(out) > n {
		out = out[:n]
	}
	return out
}

func compareBy(field SortField, a, b domain.FileRecord) int {
	switch field {
	case SortName:
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortSize:
		return cmp.Compare(a.Size, b.Size)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
