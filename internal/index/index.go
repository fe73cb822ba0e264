// Package index describes database indexes as immutable values.
//
// A Definition is built once through chained calls, each returning a new
// value, and handed to querysql for DDL generation:
//
//	def := index.On(users, index.Col(users, "status")).
//		Unique().
//		Where(expr.Must(deletedAt.IsNull()).Node()).
//		Storing("email")
package index

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// Key is one element of an index key: an expression or a raw SQL
// fragment, optionally descending.
type Key struct {
	Expr queryir.Expression
	Raw  string
	Desc bool
}

// Col keys on a column of table.
func Col(table queryir.Table, column string) Key {
	var t datatype.Type = datatype.Void{}
	if def, ok := table.Column(column); ok {
		t = def.Type
	}
	return Key{Expr: queryir.ColumnRef{Table: table.Name, Column: column, Type: t}}
}

// Expression keys on an arbitrary expression over the table's columns.
func Expression(e queryir.Expression) Key {
	return Key{Expr: e}
}

// Raw keys on trusted SQL rendered verbatim.
func Raw(sql string) Key {
	return Key{Raw: sql}
}

// Descending returns k sorted descending.
func (k Key) Descending() Key {
	k.Desc = true
	return k
}

// name is the key's contribution to a generated index name.
func (k Key) name() string {
	if k.Expr != nil {
		if names := k.Expr.InferredAliases(); len(names) > 0 {
			return names[0]
		}
	}
	return "expr"
}

// Definition describes one index. The zero value is not usable;
// start with On.
type Definition struct {
	table        queryir.Table
	keys         []Key
	unique       bool
	concurrently bool
	inverted     bool
	method       string
	where        queryir.Expression
	storing      []string
	with         map[string]any
	partitionBy  string
	name         string
}

// On starts an index over table keyed by keys.
func On(table queryir.Table, keys ...Key) Definition {
	return Definition{table: table, keys: slices.Clone(keys)}
}

// Unique makes the index enforce uniqueness.
func (d Definition) Unique() Definition {
	d.unique = true
	return d
}

// Concurrently builds the index without locking writes.
func (d Definition) Concurrently() Definition {
	d.concurrently = true
	return d
}

// Using sets the access method, e.g. "btree", "hash", "gin".
func (d Definition) Using(method string) Definition {
	d.method = method
	return d
}

// Inverted makes the index an inverted (GIN-style) index.
func (d Definition) Inverted() Definition {
	d.inverted = true
	return d
}

// Where makes the index partial.
func (d Definition) Where(cond queryir.Expression) Definition {
	d.where = cond
	return d
}

// Storing adds covering columns carried in the index but not part of the
// key.
func (d Definition) Storing(columns ...string) Definition {
	d.storing = append(slices.Clip(d.storing), columns...)
	return d
}

// With sets a storage parameter.
func (d Definition) With(param string, value any) Definition {
	next := maps.Clone(d.with)
	if next == nil {
		next = map[string]any{}
	}
	next[param] = value
	d.with = next
	return d
}

// PartitionBy sets a raw partition clause, e.g. `LIST (region) (...)`.
func (d Definition) PartitionBy(clause string) Definition {
	d.partitionBy = clause
	return d
}

// Named sets an explicit index name.
func (d Definition) Named(name string) Definition {
	d.name = name
	return d
}

// Table returns the indexed table.
func (d Definition) Table() queryir.Table { return d.table }

// Keys returns the key elements.
func (d Definition) Keys() []Key { return slices.Clone(d.keys) }

// IsUnique reports whether the index enforces uniqueness.
func (d Definition) IsUnique() bool { return d.unique }

// IsConcurrent reports whether the index is built concurrently.
func (d Definition) IsConcurrent() bool { return d.concurrently }

// IsInverted reports whether the index is inverted.
func (d Definition) IsInverted() bool { return d.inverted }

// Method returns the access method, or "" for the database default.
func (d Definition) Method() string { return d.method }

// Condition returns the partial-index predicate, or nil.
func (d Definition) Condition() queryir.Expression { return d.where }

// StoringColumns returns the covering columns.
func (d Definition) StoringColumns() []string { return slices.Clone(d.storing) }

// Params returns the storage parameters.
func (d Definition) Params() map[string]any { return maps.Clone(d.with) }

// Partition returns the raw partition clause, or "".
func (d Definition) Partition() string { return d.partitionBy }

// Name returns the explicit name, or <table>_<keys>_idx (_key when unique).
func (d Definition) Name() string {
	if d.name != "" {
		return d.name
	}
	parts := []string{d.table.Name}
	for _, k := range d.keys {
		parts = append(parts, k.name())
	}
	suffix := "idx"
	if d.unique {
		suffix = "key"
	}
	return strings.Join(append(parts, suffix), "_")
}

// Validate checks that the definition is complete and that every column it
// names belongs to the table.
func (d Definition) Validate() error {
	if d.table.Name == "" {
		return sqlerr.NewInvalidDefinition("index has no table")
	}
	if len(d.keys) == 0 {
		return sqlerr.NewInvalidDefinition("index on %q has no keys", d.table.Name)
	}
	for i, k := range d.keys {
		if (k.Expr == nil) == (k.Raw == "") {
			return sqlerr.NewInvalidDefinition("index key %d on %q needs exactly one of an expression or raw SQL", i, d.table.Name)
		}
		if k.Expr != nil {
			if k.Expr.IsAggregate() {
				return sqlerr.NewInvalidDefinition("index key %d on %q is an aggregate", i, d.table.Name)
			}
			if err := d.resolve(k.Expr, "index key"); err != nil {
				return err
			}
		}
	}
	if d.where != nil {
		if !datatype.IsBoolean(d.where.DataType()) {
			return sqlerr.NewTypeMismatch("index where", d.where.DataType(), datatype.Boolean{})
		}
		if err := d.resolve(d.where, "index where"); err != nil {
			return err
		}
	}
	for _, c := range d.storing {
		if _, ok := d.table.Column(c); !ok {
			return sqlerr.NewUnresolved(d.table.Name, c, "index storing")
		}
	}
	if d.unique && d.inverted {
		return sqlerr.NewInvalidDefinition("index on %q cannot be both unique and inverted", d.table.Name)
	}
	return nil
}

func (d Definition) resolve(e queryir.Expression, context string) error {
	var err error
	queryir.Walk(e, func(n queryir.Expression) bool {
		if ref, ok := n.(queryir.ColumnRef); ok && err == nil {
			if ref.Table != d.table.Name && ref.Table != d.table.Ref() {
				err = sqlerr.NewUnresolved(ref.Table, ref.Column, context)
			} else if _, ok := d.table.Column(ref.Column); !ok {
				err = sqlerr.NewUnresolved(ref.Table, ref.Column, context)
			}
		}
		return err == nil
	})
	return err
}
