package queryir

import (
	"fmt"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each unresolved reference or illegal grouping.
	Problems []Problem
}

// Problem is a single validation finding.
type Problem struct {
	Alias   string
	Column  string
	Message string
}

func (p Problem) String() string { return p.Message }

// Validate checks that a query is internally consistent:
//  1. Entity aliases are unique
//  2. Every column reference resolves to a declared column of a visible entity
//  3. With GROUP BY or aggregates, every non-aggregated select item reads
//     only grouped columns
//  4. ORDER BY output aliases name an explicit select item
//
// Validate is a pure function with no side effects.
func Validate(q *Select) ValidationResult {
	v := &validator{}
	v.validateSelect(q, nil)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []Problem
}

func (v *validator) add(alias, column, format string, args ...any) {
	v.problems = append(v.problems, Problem{
		Alias:   alias,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	})
}

// validateSelect checks q with outer holding entities of enclosing queries
// visible to correlated sub-queries.
func (v *validator) validateSelect(q *Select, outer []Table) {
	seen := map[string]bool{}
	for _, e := range q.Entities() {
		if seen[e.Ref()] {
			v.add(e.Ref(), "", "duplicate entity alias %q", e.Ref())
		}
		seen[e.Ref()] = true
	}
	scope := append(q.Entities(), outer...)

	for _, j := range q.Joins {
		v.validateExpr(j.On, scope, "join "+j.Entity.Ref())
	}
	v.validateExpr(q.Where, scope, "where")
	for _, g := range q.GroupBy {
		v.validateExpr(g, scope, "group by")
	}
	for _, item := range q.Items {
		v.validateExpr(item.Expr, scope, "select")
	}
	for _, o := range q.OrderBy {
		if o.Expr != nil {
			v.validateExpr(o.Expr, scope, "order by")
		}
	}

	v.validateGrouping(q)
	v.validateOrderAliases(q)
}

// validateExpr resolves every column reference in e against scope.
func (v *validator) validateExpr(e Expression, scope []Table, context string) {
	Walk(e, func(n Expression) bool {
		switch x := n.(type) {
		case ColumnRef:
			v.resolve(x, scope, context)
		case WholeRow:
			if !visible(x.Entity.Ref(), scope) {
				v.add(x.Entity.Ref(), "", "unknown entity alias %q in %s", x.Entity.Ref(), context)
			}
		case InSubquery:
			v.validateSelect(x.Query, scope)
		}
		return true
	})
}

func (v *validator) resolve(ref ColumnRef, scope []Table, context string) {
	for _, t := range scope {
		if t.Ref() != ref.Table {
			continue
		}
		if _, ok := t.Column(ref.Column); !ok {
			v.add(ref.Table, ref.Column, "unknown column %q of %q in %s", ref.Column, ref.Table, context)
		}
		return
	}
	v.add(ref.Table, ref.Column, "unknown entity alias %q in %s", ref.Table, context)
}

func visible(alias string, scope []Table) bool {
	for _, t := range scope {
		if t.Ref() == alias {
			return true
		}
	}
	return false
}

// validateGrouping enforces GROUP BY legality of the projection.
func (v *validator) validateGrouping(q *Select) {
	aggregated := false
	for _, item := range q.Items {
		if item.Expr.IsAggregate() {
			aggregated = true
		}
	}
	if len(q.GroupBy) == 0 && !aggregated {
		return
	}
	if !q.Explicit {
		v.add("", "", "grouped query must select explicit columns")
		return
	}

	grouped := map[string]bool{}
	for _, g := range q.GroupBy {
		for _, r := range g.ColumnRefs() {
			grouped[r.Key()] = true
		}
	}
	for _, item := range q.Items {
		for _, r := range item.Expr.ColumnRefs() {
			if !grouped[r.Key()] {
				v.add(r.Table, r.Column, "column %q must appear in GROUP BY or be aggregated", r.Key())
			}
		}
	}
}

// validateOrderAliases checks ORDER BY items that reference output aliases.
func (v *validator) validateOrderAliases(q *Select) {
	for _, o := range q.OrderBy {
		if o.Alias == "" {
			continue
		}
		found := false
		if q.Explicit {
			for _, item := range q.Items {
				if item.OutputName() == o.Alias {
					found = true
					break
				}
			}
		}
		if !found {
			v.add(o.Alias, "", "order by references unknown output alias %q", o.Alias)
		}
	}
}
