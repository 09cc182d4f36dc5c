package repository

import (
	"fmt"
	"strings"

	"filevault/server/fileman/query"
)

var sortColumns = map[query.SortField]string{
	query.SortCreatedAt: "f.created_at",
	query.SortUpdatedAt: "f.updated_at",
	query.SortName:      "LOWER(f.name)",
	query.SortSize:      "f.size_bytes",
}

// renderPlan turns a plan into WHERE / ORDER BY / LIMIT fragments with
// positional args starting at $1. It refuses a plan whose first clause is not
// the visibility predicate.
func renderPlan(plan query.Plan) (string, []any, error) {
	if _, ok := plan.Visibility(); !ok {
		return "", nil, fmt.Errorf("query plan must start with a visibility clause")
	}

	var (
		conditions []string
		args       []any
		orderBy    = renderOrderBy(query.DefaultSort)
		limit      string
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, c := range plan.Clauses {
		switch c := c.(type) {
		case query.VisibilityClause:
			conditions = append(conditions, fmt.Sprintf("(f.owner_id = %s OR %s = ANY(f.shared_with))", next(c.OwnerID), next(c.Email)))
		case query.CategoryClause:
			names := make([]string, 0, len(c.Categories))
			for _, category := range c.Categories {
				names = append(names, string(category))
			}
			conditions = append(conditions, fmt.Sprintf("f.category = ANY(%s)", next(names)))
		case query.SearchClause:
			conditions = append(conditions, fmt.Sprintf(`f.name ILIKE %s ESCAPE '\'`, next("%"+escapeLike(c.Text)+"%")))
		case query.SortClause:
			orderBy = renderOrderBy(c)
		case query.LimitClause:
			limit = " LIMIT " + next(c.N)
		default:
			return "", nil, fmt.Errorf("unsupported clause %T", c)
		}
	}

	return "WHERE " + strings.Join(conditions, " AND ") + " " + orderBy + limit, args, nil
}

func renderOrderBy(s query.SortClause) string {
	column, ok := sortColumns[s.Field]
	if !ok {
		column = sortColumns[query.DefaultSort.Field]
	}
	direction := "DESC"
	if s.Direction == query.Asc {
		direction = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, f.id ASC", column, direction)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
