// Package query compiles list requests into an ordered, closed set of
// clauses that a metadata store executes. Compilation is pure.
package query

import (
	"filevault/server/fileman/domain"
)

// Clause is one of VisibilityClause, CategoryClause, SearchClause,
// SortClause or LimitClause. The set is closed: the unexported marker keeps
// other packages from adding variants.
type Clause interface {
	isClause()
}

// VisibilityClause restricts results to records owned by OwnerID or shared
// with Email. Every plan starts with exactly one.
type VisibilityClause struct {
	OwnerID string
	Email   string
}

type CategoryClause struct {
	Categories []domain.Category
}

// SearchClause is a case-insensitive substring match on the file name.
type SearchClause struct {
	Text string
}

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortName      SortField = "name"
	SortSize      SortField = "size"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type SortClause struct {
	Field     SortField
	Direction Direction
}

type LimitClause struct {
	N int
}

func (VisibilityClause) isClause() {}
func (CategoryClause) isClause()   {}
func (SearchClause) isClause()     {}
func (SortClause) isClause()       {}
func (LimitClause) isClause()      {}

// Plan is the compiled, ordered clause list.
type Plan struct {
	Clauses []Clause
}

func (p Plan) Visibility() (VisibilityClause, bool) {
	if len(p.Clauses) == 0 {
		return VisibilityClause{}, false
	}
	v, ok := p.Clauses[0].(VisibilityClause)
	return v, ok
}

func (p Plan) Sort() SortClause {
	for _, c := range p.Clauses {
		if s, ok := c.(SortClause); ok {
			return s
		}
	}
	return DefaultSort
}

func (p Plan) Limit() (int, bool) {
	for _, c := range p.Clauses {
		if l, ok := c.(LimitClause); ok {
			return l.N, true
		}
	}
	return 0, false
}
