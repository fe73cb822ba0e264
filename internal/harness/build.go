package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/expr"
	"github.com/roach88/typesql/internal/query"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/schema"
	"github.com/roach88/typesql/internal/sqlerr"
)

var aggregates = map[string]func(expr.Expr) (expr.Expr, error){
	"count":          func(e expr.Expr) (expr.Expr, error) { return expr.Count(e), nil },
	"count_distinct": func(e expr.Expr) (expr.Expr, error) { return expr.CountDistinct(e), nil },
	"sum":            expr.Sum,
	"avg":            expr.Avg,
	"min":            expr.Min,
	"max":            expr.Max,
}

// BuildQuery translates the scenario query into a builder over the tables
// declared in sch, applying clauses in protocol order: joins, where,
// group_by, select, order_by, limit. The expect clause becomes the
// builder's verification payload.
func BuildQuery(sc *Scenario, sch *schema.Schema) (query.Builder, error) {
	q := sc.Query

	from, err := entity(sch, q.From, q.As)
	if err != nil {
		return query.Builder{}, fmt.Errorf("query.from: %w", err)
	}
	b := query.From(from)
	resolve := func(name string) (expr.Expr, error) {
		alias, column := splitColumn(name, from.Ref())
		return b.Col(alias, column)
	}

	for i, j := range q.Joins {
		table, err := entity(sch, j.Table, j.As)
		if err != nil {
			return b, fmt.Errorf("query.joins[%d]: %w", i, err)
		}
		left := strings.EqualFold(j.Kind, "left")
		on, err := j.On.Build(pending(resolve, from.Ref(), table, left))
		if err != nil {
			return b, fmt.Errorf("query.joins[%d].on: %w", i, err)
		}
		if left {
			b, err = b.LeftJoin(table, on)
		} else {
			b, err = b.InnerJoin(table, on)
		}
		if err != nil {
			return b, fmt.Errorf("query.joins[%d]: %w", i, err)
		}
	}

	for i, c := range q.Where {
		cond, err := c.Build(resolve)
		if err != nil {
			return b, fmt.Errorf("query.where[%d]: %w", i, err)
		}
		if i == 0 {
			b, err = b.Where(cond)
		} else {
			b, err = b.And(cond)
		}
		if err != nil {
			return b, fmt.Errorf("query.where[%d]: %w", i, err)
		}
	}

	if len(q.GroupBy) > 0 {
		groups := make([]expr.Expr, len(q.GroupBy))
		for i, name := range q.GroupBy {
			if groups[i], err = resolve(name); err != nil {
				return b, fmt.Errorf("query.group_by[%d]: %w", i, err)
			}
		}
		if b, err = b.GroupBy(groups...); err != nil {
			return b, fmt.Errorf("query.group_by: %w", err)
		}
	}

	if len(q.Select) > 0 {
		items := make([]queryir.SelectItem, len(q.Select))
		for i, s := range q.Select {
			if items[i], err = selectItem(b, resolve, s); err != nil {
				return b, fmt.Errorf("query.select[%d]: %w", i, err)
			}
		}
		if b, err = b.Select(items...); err != nil {
			return b, fmt.Errorf("query.select: %w", err)
		}
	}

	for i, o := range q.OrderBy {
		if strings.Contains(o.Column, ".") || !isOutputName(b, o.Column) {
			var key expr.Expr
			if key, err = resolve(o.Column); err == nil {
				b, err = b.OrderBy(key, o.Desc)
			}
		} else {
			b, err = b.OrderByAlias(o.Column, o.Desc)
		}
		if err != nil {
			return b, fmt.Errorf("query.order_by[%d]: %w", i, err)
		}
	}

	if q.Limit != nil {
		var offset int64
		if q.Offset != nil {
			offset = *q.Offset
		}
		if b, err = b.LimitOffset(*q.Limit, offset); err != nil {
			return b, fmt.Errorf("query.limit: %w", err)
		}
	}

	if sc.Expect != nil {
		if sc.Expect.Length != nil {
			b = b.Expect(*sc.Expect.Length)
		}
		if len(sc.Expect.Narrow) > 0 {
			filter, err := expr.Condition{All: sc.Expect.Narrow}.Build(resolve)
			if err != nil {
				return b, fmt.Errorf("expect.narrow: %w", err)
			}
			if b, err = b.Narrow(filter); err != nil {
				return b, fmt.Errorf("expect.narrow: %w", err)
			}
		}
	}
	return b, nil
}

func entity(sch *schema.Schema, name, as string) (queryir.Table, error) {
	t, ok := sch.Table(name)
	if !ok {
		return queryir.Table{}, sqlerr.NewUnresolved(name, "", "schema tables")
	}
	if as != "" {
		t = t.As(as)
	}
	return t, nil
}

// pending resolves columns of a table being joined, which the builder does
// not know until the join is added.
func pending(resolve expr.Resolver, from string, table queryir.Table, nullable bool) expr.Resolver {
	return func(name string) (expr.Expr, error) {
		alias, column := splitColumn(name, from)
		if alias != table.Ref() {
			return resolve(name)
		}
		def, ok := table.Column(column)
		if !ok {
			return expr.Expr{}, sqlerr.NewUnresolved(alias, column, "columns of "+table.Name)
		}
		t := def.Type
		if nullable {
			t = datatype.MakeNullable(t)
		}
		return expr.Col(queryir.ColumnRef{Table: alias, Column: column, Type: t}), nil
	}
}

func selectItem(b query.Builder, resolve expr.Resolver, s SelectStep) (queryir.SelectItem, error) {
	if s.Aggregate == "" && !strings.Contains(s.Column, ".") && len(s.Path) == 0 {
		if item, err := b.Row(s.Column); err == nil {
			item.Alias = s.As
			return item, nil
		}
	}

	var e expr.Expr
	var err error
	if s.Column == "" {
		if !strings.EqualFold(s.Aggregate, "count") {
			return queryir.SelectItem{}, sqlerr.NewInvalidDefinition("aggregate %s needs a column", s.Aggregate)
		}
		e = expr.CountAll()
	} else if e, err = resolve(s.Column); err != nil {
		return queryir.SelectItem{}, err
	}

	if len(s.Path) > 0 {
		if s.Text {
			e, err = e.AccessJSONText(expr.Keys(s.Path...))
		} else {
			e, err = e.AccessJSON(expr.Keys(s.Path...))
		}
		if err != nil {
			return queryir.SelectItem{}, err
		}
	}

	if s.Aggregate != "" && s.Column != "" {
		if e, err = aggregates[strings.ToLower(s.Aggregate)](e); err != nil {
			return queryir.SelectItem{}, err
		}
	}

	if s.As != "" {
		return e.As(s.As), nil
	}
	return e.Item(), nil
}

func isOutputName(b query.Builder, name string) bool {
	if !b.State().Has(query.HasExplicitSelect) {
		return false
	}
	for _, item := range b.Build().Items {
		if item.OutputName() == name {
			return true
		}
	}
	return false
}

// splitColumn splits alias.column. A bare name belongs to the FROM entity.
func splitColumn(name, from string) (alias, column string) {
	if a, c, ok := strings.Cut(name, "."); ok {
		return a, c
	}
	return from, name
}
