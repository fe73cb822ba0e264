// Package expr is the fluent surface for composing queryir expressions.
//
// Every builder method validates the domains of its operands at
// construction time: comparing incompatible domains returns a
// TYPE_MISMATCH error, and a bare Go value that does not fit the domain of
// the left operand returns UNSUPPORTED_CONSTANT_COERCION. Expr values are
// immutable; every method returns a new Expr.
//
//	status := expr.Col(ref)
//	cond, err := status.Equals("active")
//	cond, err = cond.And(expr.Must(deletedAt.IsNull()))
package expr

import (
	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// Expr wraps an expression node.
type Expr struct {
	node queryir.Expression
}

// Of wraps an existing expression node.
func Of(node queryir.Expression) Expr {
	return Expr{node: node}
}

// Col wraps a column reference.
func Col(ref queryir.ColumnRef) Expr {
	return Expr{node: ref}
}

// Node returns the wrapped expression node.
func (e Expr) Node() queryir.Expression { return e.node }

// DataType returns the domain of the expression.
func (e Expr) DataType() datatype.Type { return e.node.DataType() }

// IsZero reports whether e wraps no node.
func (e Expr) IsZero() bool { return e.node == nil }

// check rejects a zero receiver before any builder method reads its domain.
func (e Expr) check(op string) error {
	if e.node == nil {
		return sqlerr.NewInvalidDefinition(op + " on empty expression")
	}
	return nil
}

// Must panics if err is non-nil and returns e otherwise. Use it in tests
// and in static query definitions known to be well typed.
func Must(e Expr, err error) Expr {
	if err != nil {
		panic(err)
	}
	return e
}

// operand turns v into an expression. Expr and queryir.Expression values
// are used as-is; anything else is coerced to the non-nullable domain of
// target.
func operand(v any, target datatype.Type) (queryir.Expression, error) {
	switch x := v.(type) {
	case Expr:
		if x.node == nil {
			return nil, sqlerr.NewInvalidDefinition("empty expression operand")
		}
		return x.node, nil
	case queryir.Expression:
		return x, nil
	}
	return Coerce(v, target)
}

// Equals builds e = v.
func (e Expr) Equals(v any) (Expr, error) { return e.compare(queryir.OpEq, v) }

// NotEquals builds e != v.
func (e Expr) NotEquals(v any) (Expr, error) { return e.compare(queryir.OpNe, v) }

// LessThan builds e < v.
func (e Expr) LessThan(v any) (Expr, error) { return e.compare(queryir.OpLt, v) }

// LessThanOrEqual builds e <= v.
func (e Expr) LessThanOrEqual(v any) (Expr, error) { return e.compare(queryir.OpLe, v) }

// GreaterThan builds e > v.
func (e Expr) GreaterThan(v any) (Expr, error) { return e.compare(queryir.OpGt, v) }

// GreaterThanOrEqual builds e >= v.
func (e Expr) GreaterThanOrEqual(v any) (Expr, error) { return e.compare(queryir.OpGe, v) }

// Like builds e LIKE pattern. Both sides must be varchar.
func (e Expr) Like(pattern any) (Expr, error) {
	if err := e.check(string(queryir.OpLike)); err != nil {
		return Expr{}, err
	}
	right, err := operand(pattern, e.DataType())
	if err != nil {
		return Expr{}, err
	}
	if !datatype.IsText(e.DataType()) || !datatype.IsText(right.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch(string(queryir.OpLike), e.DataType(), right.DataType())
	}
	return Expr{node: queryir.Comparator{Op: queryir.OpLike, Left: e.node, Right: right}}, nil
}

func (e Expr) compare(op queryir.CompareOp, v any) (Expr, error) {
	if err := e.check(string(op)); err != nil {
		return Expr{}, err
	}
	right, err := operand(v, e.DataType())
	if err != nil {
		return Expr{}, err
	}
	if !datatype.CanCompare(datatype.NonNullable(e.DataType()), datatype.NonNullable(right.DataType())) {
		return Expr{}, sqlerr.NewTypeMismatch(string(op), e.DataType(), right.DataType())
	}
	return Expr{node: queryir.Comparator{Op: op, Left: e.node, Right: right}}, nil
}

// And builds (e) AND (v). v must be boolean.
func (e Expr) And(v any) (Expr, error) { return e.logical(queryir.OpAnd, v) }

// Or builds (e) OR (v). v must be boolean.
func (e Expr) Or(v any) (Expr, error) { return e.logical(queryir.OpOr, v) }

func (e Expr) logical(op queryir.LogicalOp, v any) (Expr, error) {
	if err := e.check(string(op)); err != nil {
		return Expr{}, err
	}
	right, err := operand(v, datatype.Boolean{})
	if err != nil {
		return Expr{}, err
	}
	if !datatype.IsBoolean(e.DataType()) || !datatype.IsBoolean(right.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch(string(op), e.DataType(), right.DataType())
	}
	return Expr{node: queryir.Logical{Op: op, Left: e.node, Right: right}}, nil
}

// Not builds NOT e. e must be boolean.
func (e Expr) Not() (Expr, error) {
	if err := e.check("NOT"); err != nil {
		return Expr{}, err
	}
	if !datatype.IsBoolean(e.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch("NOT", e.DataType(), datatype.Boolean{})
	}
	return Expr{node: queryir.Not{Operand: e.node}}, nil
}

// IsNull builds e IS NULL. It is only constructible on a nullable domain;
// on any other domain the test would be a tautology.
func (e Expr) IsNull() (Expr, error) { return e.nullTest(false) }

// IsNotNull builds e IS NOT NULL, with the same restriction as IsNull.
func (e Expr) IsNotNull() (Expr, error) { return e.nullTest(true) }

func (e Expr) nullTest(not bool) (Expr, error) {
	node := queryir.NullTest{Operand: e.node, Not: not}
	if err := e.check(node.Keyword()); err != nil {
		return Expr{}, err
	}
	if !datatype.IsNullable(e.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch(node.Keyword(), e.DataType(), datatype.Null{})
	}
	return Expr{node: node}, nil
}

// In builds e IN (values...). Each value is coerced to the domain of e.
func (e Expr) In(values ...any) (Expr, error) { return e.in(false, values) }

// NotIn builds e NOT IN (values...).
func (e Expr) NotIn(values ...any) (Expr, error) { return e.in(true, values) }

func (e Expr) in(not bool, values []any) (Expr, error) {
	if err := e.check("IN"); err != nil {
		return Expr{}, err
	}
	items := make([]queryir.Expression, len(values))
	for i, v := range values {
		item, err := operand(v, e.DataType())
		if err != nil {
			return Expr{}, err
		}
		if !datatype.CanCompare(datatype.NonNullable(e.DataType()), datatype.NonNullable(item.DataType())) {
			return Expr{}, sqlerr.NewTypeMismatch("IN", e.DataType(), item.DataType())
		}
		items[i] = item
	}
	return Expr{node: queryir.InList{Left: e.node, Items: items, Not: not}}, nil
}

// InQuery builds e IN (sub-query). The sub-query must select exactly one
// column comparable with e.
func (e Expr) InQuery(q *queryir.Select) (Expr, error) { return e.inQuery(false, q) }

// NotInQuery builds e NOT IN (sub-query).
func (e Expr) NotInQuery(q *queryir.Select) (Expr, error) { return e.inQuery(true, q) }

func (e Expr) inQuery(not bool, q *queryir.Select) (Expr, error) {
	if err := e.check("IN"); err != nil {
		return Expr{}, err
	}
	if q == nil || !q.Explicit || len(q.Items) != 1 {
		return Expr{}, sqlerr.NewInvalidDefinition("IN sub-query must select exactly one explicit column")
	}
	selected := q.Items[0].Expr.DataType()
	if !datatype.CanCompare(datatype.NonNullable(e.DataType()), datatype.NonNullable(selected)) {
		return Expr{}, sqlerr.NewTypeMismatch("IN", e.DataType(), selected)
	}
	return Expr{node: queryir.InSubquery{Left: e.node, Query: q, Not: not}}, nil
}

// Bracket wraps e in explicit parentheses.
func (e Expr) Bracket() Expr {
	return Expr{node: queryir.Bracket{Inner: e.node}}
}

// As names e in a select list.
func (e Expr) As(alias string) queryir.SelectItem {
	return queryir.SelectItem{Expr: e.node, Alias: alias}
}

// Item selects e under its inferred output name.
func (e Expr) Item() queryir.SelectItem {
	return queryir.SelectItem{Expr: e.node}
}

// If builds CASE WHEN cond THEN then ELSE els END. The result domain is
// the merge of both branches: a bare value branch is coerced to the domain
// of an expression branch, and two bare values must infer the same domain.
// A nil branch renders as NULL and makes the result nullable.
func If(cond Expr, then, els any) (Expr, error) {
	if cond.IsZero() || !datatype.IsBoolean(cond.DataType()) {
		var got datatype.Type = datatype.Void{}
		if !cond.IsZero() {
			got = cond.DataType()
		}
		return Expr{}, sqlerr.NewTypeMismatch("IF", got, datatype.Boolean{})
	}

	target, err := branchType(then, els)
	if err != nil {
		return Expr{}, err
	}
	thenNode, err := branch(then, target)
	if err != nil {
		return Expr{}, err
	}
	elseNode, err := branch(els, target)
	if err != nil {
		return Expr{}, err
	}
	merged, err := datatype.Merge(thenNode.DataType(), elseNode.DataType())
	if err != nil {
		return Expr{}, err
	}
	return Expr{node: queryir.If{Cond: cond.node, Then: thenNode, Else: elseNode, Type: merged}}, nil
}

// branch is operand with nil allowed, rendering as NULL.
func branch(v any, target datatype.Type) (queryir.Expression, error) {
	if v == nil {
		return queryir.Constant{Value: nil, Type: datatype.Null{}}, nil
	}
	return operand(v, target)
}

// branchType picks the domain bare branch values are coerced to.
func branchType(branches ...any) (datatype.Type, error) {
	for _, b := range branches {
		switch x := b.(type) {
		case Expr:
			if !x.IsZero() {
				return x.DataType(), nil
			}
		case queryir.Expression:
			return x.DataType(), nil
		}
	}
	for _, b := range branches {
		if b != nil {
			return Infer(b)
		}
	}
	return nil, sqlerr.NewInvalidDefinition("IF needs at least one non-null branch")
}
