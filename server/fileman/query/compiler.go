package query

import (
	"slices"
	"strings"

	"filevault/server/fileman/domain"
)

// DefaultSort is applied when the request names no sort or an unknown field.
var DefaultSort = SortClause{Field: SortCreatedAt, Direction: Desc}

var sortFields = map[string]SortField{
	"createdat":  SortCreatedAt,
	"$createdat": SortCreatedAt,
	"updatedat":  SortUpdatedAt,
	"$updatedat": SortUpdatedAt,
	"name":       SortName,
	"size":       SortSize,
}

// Request carries the caller's list intent. Zero values mean "not set".
type Request struct {
	Categories []domain.Category
	SearchText string
	Sort       string
	Limit      int
}

// Build compiles req for the caller. The visibility clause is always first
// and is derived only from the identity, never from req.
func Build(caller domain.Identity, req Request) (Plan, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return Plan{}, domain.NewValidationError("identity", "user id is required")
	}

	clauses := []Clause{VisibilityClause{
		OwnerID: caller.UserID,
		Email:   domain.NormalizeEmail(caller.Email),
	}}

	if categories := uniqueCategories(req.Categories); len(categories) > 0 {
		clauses = append(clauses, CategoryClause{Categories: categories})
	}
	if text := strings.TrimSpace(req.SearchText); text != "" {
		clauses = append(clauses, SearchClause{Text: text})
	}
	clauses = append(clauses, ParseSort(req.Sort))
	if req.Limit > 0 {
		clauses = append(clauses, LimitClause{N: req.Limit})
	}
	return Plan{Clauses: clauses}, nil
}

// ParseSort reads "<field>-<asc|desc>". An unknown field yields DefaultSort;
// a known field with a missing or unknown direction sorts descending.
func ParseSort(raw string) SortClause {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSort
	}
	fieldPart, dirPart, _ := strings.Cut(raw, "-")
	field, ok := sortFields[strings.ToLower(fieldPart)]
	if !ok {
		return DefaultSort
	}
	dir := Desc
	if strings.EqualFold(dirPart, string(Asc)) {
		dir = Asc
	}
	return SortClause{Field: field, Direction: dir}
}

func uniqueCategories(in []domain.Category) []domain.Category {
	out := make([]domain.Category, 0, len(in))
	for _, c := range in {
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
