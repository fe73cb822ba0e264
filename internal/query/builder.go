// Package query accumulates the clauses of a SELECT under a legality
// protocol.
//
// Every clause call returns a new Builder and never mutates the receiver,
// so a builder can be forked and continued two different ways:
//
//	base := query.From(users.As("u"))
//	active, err := base.Where(expr.Must(status.Equals("active")))
//	limited, err := base.Limit(10)
//
// Clause order is enforced by State.Allows; a violation is an
// ILLEGAL_CLAUSE_ORDER error at call time.
package query

import (
	"slices"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/expr"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/querysql"
	"github.com/roach88/typesql/internal/sqlerr"
	"github.com/roach88/typesql/internal/sqltext"
)

// Builder is an immutable query accumulator.
type Builder struct {
	sel    queryir.Select
	state  State
	verify queryir.Verification
}

// From starts a query over table. Use table.As to alias it.
func From(table queryir.Table) Builder {
	return Builder{sel: queryir.Select{From: table}}
}

// State returns the clauses set so far.
func (b Builder) State() State { return b.state }

// Verification returns the verification payload set by Expect and Narrow.
func (b Builder) Verification() queryir.Verification { return b.verify }

// Col resolves alias.column against the entities of the query. Columns of
// a LEFT JOINed entity are nullable.
func (b Builder) Col(alias, column string) (expr.Expr, error) {
	ref, err := b.column(alias, column)
	if err != nil {
		return expr.Expr{}, err
	}
	return expr.Col(ref), nil
}

// Row returns the whole-row projection of the entity under alias.
func (b Builder) Row(alias string) (queryir.SelectItem, error) {
	entity, ok := b.sel.Entity(alias)
	if !ok {
		return queryir.SelectItem{}, sqlerr.NewUnresolved(alias, "", "select")
	}
	return queryir.SelectItem{Expr: queryir.WholeRow{Entity: entity, Optional: b.sel.IsLeftJoined(alias)}}, nil
}

func (b Builder) column(alias, column string) (queryir.ColumnRef, error) {
	entity, ok := b.sel.Entity(alias)
	if !ok {
		return queryir.ColumnRef{}, sqlerr.NewUnresolved(alias, column, "query entities")
	}
	def, ok := entity.Column(column)
	if !ok {
		return queryir.ColumnRef{}, sqlerr.NewUnresolved(alias, column, "columns of "+entity.Name)
	}
	t := def.Type
	if b.sel.IsLeftJoined(alias) {
		t = datatype.MakeNullable(t)
	}
	return queryir.ColumnRef{Table: alias, Column: column, Type: t}, nil
}

// InnerJoin adds INNER JOIN table ON on.
func (b Builder) InnerJoin(table queryir.Table, on expr.Expr) (Builder, error) {
	return b.join(queryir.JoinInner, table, on)
}

// LeftJoin adds LEFT JOIN table ON on. Columns of table resolve as
// nullable afterwards.
func (b Builder) LeftJoin(table queryir.Table, on expr.Expr) (Builder, error) {
	return b.join(queryir.JoinLeft, table, on)
}

func (b Builder) join(kind queryir.JoinKind, table queryir.Table, on expr.Expr) (Builder, error) {
	if err := b.state.Allows(ClauseJoin); err != nil {
		return b, err
	}
	if _, taken := b.sel.Entity(table.Ref()); taken {
		return b, sqlerr.NewInvalidDefinition("entity alias %q is already in use", table.Ref())
	}
	if err := requireBoolean("join condition", on); err != nil {
		return b, err
	}

	next := b.clone()
	next.sel.Joins = append(next.sel.Joins, queryir.Join{Kind: kind, Entity: table, On: on.Node()})
	if err := next.resolve(on.Node(), "join "+table.Ref()); err != nil {
		return b, err
	}
	return next, nil
}

// Where sets the predicate. It may be set directly once; extend it with
// And or Or.
func (b Builder) Where(cond expr.Expr) (Builder, error) {
	if err := b.state.Allows(ClauseWhere); err != nil {
		return b, err
	}
	if err := b.checkPredicate("where", cond); err != nil {
		return b, err
	}
	next := b.clone()
	next.sel.Where = cond.Node()
	next.state |= HasWhere
	return next, nil
}

// And extends the predicate as (where) AND (cond), or sets it when there
// is none yet.
func (b Builder) And(cond expr.Expr) (Builder, error) {
	return b.extend(queryir.OpAnd, cond)
}

// Or extends the predicate as (where) OR (cond), or sets it when there is
// none yet.
func (b Builder) Or(cond expr.Expr) (Builder, error) {
	return b.extend(queryir.OpOr, cond)
}

func (b Builder) extend(op queryir.LogicalOp, cond expr.Expr) (Builder, error) {
	if err := b.state.Allows(ClauseAndOr); err != nil {
		return b, err
	}
	if err := b.checkPredicate("where", cond); err != nil {
		return b, err
	}
	next := b.clone()
	if next.sel.Where == nil {
		next.sel.Where = cond.Node()
	} else {
		next.sel.Where = queryir.Logical{Op: op, Left: next.sel.Where, Right: cond.Node()}
	}
	next.state |= HasWhere
	return next, nil
}

// GroupBy sets the grouping expressions. It must precede limit and an
// explicit select, and may be set once.
func (b Builder) GroupBy(exprs ...expr.Expr) (Builder, error) {
	if err := b.state.Allows(ClauseGroupBy); err != nil {
		return b, err
	}
	if len(exprs) == 0 {
		return b, sqlerr.NewInvalidDefinition("group_by needs at least one expression")
	}
	groups := make([]queryir.Expression, len(exprs))
	for i, e := range exprs {
		if e.IsZero() {
			return b, sqlerr.NewInvalidDefinition("group_by expression %d is empty", i)
		}
		if e.Node().IsAggregate() {
			return b, sqlerr.NewInvalidDefinition("cannot group by an aggregate")
		}
		if err := b.resolve(e.Node(), "group_by"); err != nil {
			return b, err
		}
		groups[i] = e.Node()
	}
	next := b.clone()
	next.sel.GroupBy = groups
	next.state |= HasGroupBy
	return next, nil
}

// OrderBy appends a sort key.
func (b Builder) OrderBy(e expr.Expr, desc bool) (Builder, error) {
	if err := b.state.Allows(ClauseOrderBy); err != nil {
		return b, err
	}
	if e.IsZero() {
		return b, sqlerr.NewInvalidDefinition("order_by expression is empty")
	}
	if err := b.resolve(e.Node(), "order_by"); err != nil {
		return b, err
	}
	next := b.clone()
	next.sel.OrderBy = append(next.sel.OrderBy, queryir.OrderItem{Expr: e.Node(), Desc: desc})
	next.state |= HasOrderBy
	return next, nil
}

// OrderByAlias appends a sort key naming an output column of an explicit
// select.
func (b Builder) OrderByAlias(alias string, desc bool) (Builder, error) {
	if err := b.state.Allows(ClauseOrderByAlias); err != nil {
		return b, err
	}
	found := false
	for _, item := range b.sel.Items {
		if item.OutputName() == alias {
			found = true
			break
		}
	}
	if !found {
		return b, sqlerr.NewUnresolved(alias, "", "select list")
	}
	next := b.clone()
	next.sel.OrderBy = append(next.sel.OrderBy, queryir.OrderItem{Alias: alias, Desc: desc})
	next.state |= HasOrderBy
	return next, nil
}

// Select sets the projection. With no items the query keeps its default
// projection of every entity as a whole row; with items the projection is
// explicit and locked.
func (b Builder) Select(items ...queryir.SelectItem) (Builder, error) {
	if len(items) == 0 {
		return b, nil
	}
	if err := b.state.Allows(ClauseSelect); err != nil {
		return b, err
	}
	seen := map[string]bool{}
	for i, item := range items {
		if item.Expr == nil {
			return b, sqlerr.NewInvalidDefinition("select item %d is empty", i)
		}
		if err := b.resolve(item.Expr, "select"); err != nil {
			return b, err
		}
		if name := item.OutputName(); name != "" {
			if seen[name] {
				return b, sqlerr.NewInvalidDefinition("duplicate output name %q", name)
			}
			seen[name] = true
		}
	}
	next := b.clone()
	next.sel.Items = slices.Clone(items)
	next.sel.Explicit = true
	next.state |= HasExplicitSelect
	return next, nil
}

// Limit bounds the result to n rows.
func (b Builder) Limit(n int64) (Builder, error) {
	return b.LimitOffset(n, 0)
}

// LimitOffset bounds the result to n rows after skipping offset rows.
func (b Builder) LimitOffset(n, offset int64) (Builder, error) {
	if err := b.state.Allows(ClauseLimit); err != nil {
		return b, err
	}
	if n < 0 || offset < 0 {
		return b, sqlerr.NewInvalidDefinition("limit %d offset %d must not be negative", n, offset)
	}
	next := b.clone()
	next.sel.Limit = &queryir.Limit{Count: n, Offset: offset}
	next.state |= HasLimit
	return next, nil
}

// Expect asserts the number of rows the query returns.
func (b Builder) Expect(length int) Builder {
	next := b.clone()
	next.verify.Length = &length
	return next
}

// Narrow sets the predicate every returned row must satisfy.
func (b Builder) Narrow(filter expr.Expr) (Builder, error) {
	if err := b.checkPredicate("narrow", filter); err != nil {
		return b, err
	}
	next := b.clone()
	next.verify.Filter = filter.Node()
	return next, nil
}

// Build returns the accumulated query. The result shares no mutable state
// with b.
func (b Builder) Build() *queryir.Select {
	sel := b.clone().sel
	sel.Joins = slices.Clone(sel.Joins)
	sel.GroupBy = slices.Clone(sel.GroupBy)
	sel.OrderBy = slices.Clone(sel.OrderBy)
	sel.Items = slices.Clone(sel.Items)
	return &sel
}

// SQL compiles the query for dialect d.
func (b Builder) SQL(d querysql.Dialect) (sqltext.Text, error) {
	return querysql.NewSQLCompiler(d).CompileSelect(b.Build())
}

func (b Builder) checkPredicate(context string, cond expr.Expr) error {
	if err := requireBoolean(context, cond); err != nil {
		return err
	}
	return b.resolve(cond.Node(), context)
}

func requireBoolean(context string, cond expr.Expr) error {
	if cond.IsZero() {
		return sqlerr.NewInvalidDefinition("%s condition is empty", context)
	}
	if !datatype.IsBoolean(cond.DataType()) {
		return sqlerr.NewTypeMismatch(context, cond.DataType(), datatype.Boolean{})
	}
	return nil
}

// resolve checks that every column e reads belongs to an entity of the
// query. Sub-queries are checked as their own scope by queryir.Validate.
func (b Builder) resolve(e queryir.Expression, context string) error {
	var err error
	queryir.Walk(e, func(n queryir.Expression) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case queryir.ColumnRef:
			entity, ok := b.sel.Entity(x.Table)
			if !ok {
				err = sqlerr.NewUnresolved(x.Table, x.Column, context)
			} else if _, ok := entity.Column(x.Column); !ok {
				err = sqlerr.NewUnresolved(x.Table, x.Column, context)
			}
		case queryir.WholeRow:
			if _, ok := b.sel.Entity(x.Entity.Ref()); !ok {
				err = sqlerr.NewUnresolved(x.Entity.Ref(), "", context)
			}
		}
		return true
	})
	return err
}

// clone copies b so that appends on the copy never reach b's slices.
func (b Builder) clone() Builder {
	next := b
	next.sel.Joins = slices.Clip(b.sel.Joins)
	next.sel.GroupBy = slices.Clip(b.sel.GroupBy)
	next.sel.OrderBy = slices.Clip(b.sel.OrderBy)
	next.sel.Items = slices.Clip(b.sel.Items)
	if b.sel.Limit != nil {
		limit := *b.sel.Limit
		next.sel.Limit = &limit
	}
	if b.verify.Length != nil {
		n := *b.verify.Length
		next.verify.Length = &n
	}
	return next
}
