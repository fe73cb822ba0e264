package queryir

import (
	"github.com/roach88/typesql/internal/datatype"
)

// Class is the first component of a node tag.
type Class string

const (
	ClassExpression  Class = "expression"
	ClassClause      Class = "clause"
	ClassOperator    Class = "operator"
	ClassTable       Class = "table"
	ClassTableColumn Class = "table_column"
)

// Tag identifies a node kind.
type Tag struct {
	Class   Class  `json:"class"`
	Variant string `json:"variant"`
	Type    string `json:"type"`
}

// String renders the tag as class/variant/type.
func (t Tag) String() string {
	return string(t.Class) + "/" + t.Variant + "/" + t.Type
}

// Node is any element of a query.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	Tag() Tag
	node()
}

// Expression is a node producing a value.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	Node

	// DataType is the domain of the produced value.
	DataType() datatype.Type

	// IsAggregate reports whether the expression aggregates rows.
	IsAggregate() bool

	// ColumnRefs lists the base-table columns read outside any aggregate.
	ColumnRefs() []ColumnRef

	// InferredAliases lists default output names when selected unaliased.
	InferredAliases() []string

	expression()
}

// ColumnDef declares one column of a table.
type ColumnDef struct {
	Name string
	Type datatype.Type
}

// Table is a source entity: a named table under an alias.
type Table struct {
	Name    string
	Alias   string
	Columns []ColumnDef
}

func (Table) node() {}

// Tag implements Node.
func (t Table) Tag() Tag { return Tag{ClassTable, "table", "reference"} }

// As returns a copy of the table under a different alias.
func (t Table) As(alias string) Table {
	t.Alias = alias
	return t
}

// Ref returns the alias the table is referenced by.
func (t Table) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Column looks up a declared column.
func (t Table) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// RowType returns the row domain of the table.
func (t Table) RowType() datatype.Row {
	fields := make([]datatype.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = datatype.Field{Name: c.Name, Type: c.Type}
	}
	return datatype.Row{Fields: fields}
}

// ColumnRef reads one column of an entity.
type ColumnRef struct {
	Table  string // alias of the entity
	Column string
	Type   datatype.Type
}

func (ColumnRef) node()       {}
func (ColumnRef) expression() {}

func (c ColumnRef) Tag() Tag                  { return Tag{ClassTableColumn, "column", "reference"} }
func (c ColumnRef) DataType() datatype.Type   { return c.Type }
func (c ColumnRef) IsAggregate() bool         { return false }
func (c ColumnRef) ColumnRefs() []ColumnRef   { return []ColumnRef{c} }
func (c ColumnRef) InferredAliases() []string { return []string{c.Column} }

// Key identifies the column independent of its domain.
func (c ColumnRef) Key() string { return c.Table + "." + c.Column }

// WholeRow projects an entire entity as a single JSON object. Optional
// marks a LEFT JOINed entity, whose object is NULL when no row matched.
type WholeRow struct {
	Entity   Table
	Optional bool
}

func (WholeRow) node()       {}
func (WholeRow) expression() {}

func (w WholeRow) Tag() Tag                  { return Tag{ClassTable, "whole_row", "projection"} }
func (w WholeRow) IsAggregate() bool         { return false }
func (w WholeRow) InferredAliases() []string { return []string{w.Entity.Ref()} }

func (w WholeRow) DataType() datatype.Type {
	if w.Optional {
		return datatype.MakeNullable(w.Entity.RowType())
	}
	return w.Entity.RowType()
}

func (w WholeRow) ColumnRefs() []ColumnRef {
	refs := make([]ColumnRef, len(w.Entity.Columns))
	for i, c := range w.Entity.Columns {
		refs[i] = ColumnRef{Table: w.Entity.Ref(), Column: c.Name, Type: c.Type}
	}
	return refs
}

// Constant is a literal already matched to a scalar domain. A nil Value
// renders as NULL. JSON constants hold the value to encode.
type Constant struct {
	Value any
	Type  datatype.Type
}

func (Constant) node()       {}
func (Constant) expression() {}

func (c Constant) Tag() Tag {
	if _, ok := datatype.NonNullable(c.Type).(datatype.JSON); ok {
		return Tag{ClassExpression, "constant", "json"}
	}
	return Tag{ClassExpression, "constant", "scalar"}
}
func (c Constant) DataType() datatype.Type   { return c.Type }
func (c Constant) IsAggregate() bool         { return false }
func (c Constant) ColumnRefs() []ColumnRef   { return nil }
func (c Constant) InferredAliases() []string { return nil }

// ArrayConstant is a literal array whose elements are constants of the
// element domain.
type ArrayConstant struct {
	Elems []Expression
	Type  datatype.Array
}

func (ArrayConstant) node()       {}
func (ArrayConstant) expression() {}

func (a ArrayConstant) Tag() Tag                  { return Tag{ClassExpression, "constant", "array"} }
func (a ArrayConstant) DataType() datatype.Type   { return a.Type }
func (a ArrayConstant) IsAggregate() bool         { return false }
func (a ArrayConstant) ColumnRefs() []ColumnRef   { return nil }
func (a ArrayConstant) InferredAliases() []string { return nil }
