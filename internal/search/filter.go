package search

import (
	"strings"

	"github.com/paulmach/orb"

	"ximoveis/internal/models"
)

// Spatial is the part of the database dialect the compiler needs.
type Spatial interface {
	WithinBound(alias string, b orb.Bound) (string, []any)
	ILike(col string) string
}

type Scope int

const (
	// ScopePublic always restricts to ACTIVE listings.
	ScopePublic Scope = iota
	// ScopeAdmin honors an optional status criterion.
	ScopeAdmin
)

// Predicate is one typed condition on the properties table (aliased "p").
type Predicate interface {
	compile(sp Spatial) (string, []any)
}

type equals struct {
	col string
	val any
}

func (e equals) compile(Spatial) (string, []any) { return e.col + " = ?", []any{e.val} }

type atLeast struct {
	col string
	val any
}

func (a atLeast) compile(Spatial) (string, []any) { return a.col + " >= ?", []any{a.val} }

type atMost struct {
	col string
	val any
}

func (a atMost) compile(Spatial) (string, []any) { return a.col + " <= ?", []any{a.val} }

// contains matches term as a case-insensitive substring of any of cols.
type contains struct {
	cols []string
	term string
}

func (c contains) compile(sp Spatial) (string, []any) {
	parts := make([]string, 0, len(c.cols))
	args := make([]any, 0, len(c.cols))
	for _, col := range c.cols {
		parts = append(parts, sp.ILike(col))
		args = append(args, "%"+c.term+"%")
	}
	if len(parts) == 1 {
		return parts[0], args
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

type within struct {
	bound orb.Bound
}

func (w within) compile(sp Spatial) (string, []any) {
	sql, args := sp.WithinBound("p", w.bound)
	return "(" + sql + ")", args
}

// Filter is an AND-combined list of predicates.
type Filter struct {
	preds []Predicate
}

func (f *Filter) Add(p Predicate) { f.preds = append(f.preds, p) }

func (f Filter) Len() int { return len(f.preds) }

// Where compiles the filter into "WHERE ..." with '?' placeholders, or an
// empty string when there are no predicates.
func (f Filter) Where(sp Spatial) (string, []any) {
	if len(f.preds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(f.preds))
	var args []any
	for _, p := range f.preds {
		sql, a := p.compile(sp)
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// Filter builds the predicate list for the criteria. Absent criteria add nothing.
func (c Criteria) Filter(scope Scope) Filter {
	var f Filter
	switch {
	case scope == ScopePublic:
		f.Add(equals{"p.status", string(models.StatusActive)})
	case c.Status != nil:
		f.Add(equals{"p.status", string(*c.Status)})
	}
	if c.Purpose != nil {
		f.Add(equals{"p.purpose", string(*c.Purpose)})
	}
	if c.Type != nil {
		f.Add(equals{"p.type", string(*c.Type)})
	}
	if c.MinPrice != nil {
		f.Add(atLeast{"p.price", *c.MinPrice})
	}
	if c.MaxPrice != nil {
		f.Add(atMost{"p.price", *c.MaxPrice})
	}
	if c.City != "" {
		f.Add(contains{[]string{"p.city"}, c.City})
	}
	if c.State != "" {
		f.Add(equals{"p.state", strings.ToUpper(c.State)})
	}
	if c.Neighborhood != "" {
		f.Add(contains{[]string{"p.neighborhood"}, c.Neighborhood})
	}
	if c.Address != "" {
		f.Add(contains{[]string{"p.address"}, c.Address})
	}
	if c.Q != "" {
		f.Add(contains{[]string{"p.title", "p.description", "p.address", "p.neighborhood", "p.city"}, c.Q})
	}
	if c.MinBedrooms != nil {
		f.Add(atLeast{"p.bedrooms", *c.MinBedrooms})
	}
	if c.MinBathrooms != nil {
		f.Add(atLeast{"p.bathrooms", *c.MinBathrooms})
	}
	if c.MinSuites != nil {
		f.Add(atLeast{"p.suites", *c.MinSuites})
	}
	if c.MinParking != nil {
		f.Add(atLeast{"p.parking_spaces", *c.MinParking})
	}
	if c.MinArea != nil {
		f.Add(atLeast{"p.area_m2", *c.MinArea})
	}
	if c.MaxArea != nil {
		f.Add(atMost{"p.area_m2", *c.MaxArea})
	}
	if c.Bound != nil {
		f.Add(within{*c.Bound})
	}
	return f
}

// OrderBy returns the ORDER BY clause for s. Null prices sort last in both
// price directions.
func OrderBy(s Sort) string {
	switch s {
	case SortPriceAsc:
		return "ORDER BY CASE WHEN p.price IS NULL THEN 1 ELSE 0 END, p.price ASC, p.id DESC"
	case SortPriceDesc:
		return "ORDER BY CASE WHEN p.price IS NULL THEN 1 ELSE 0 END, p.price DESC, p.id DESC"
	default:
		return "ORDER BY p.created_at DESC, p.id DESC"
	}
}
