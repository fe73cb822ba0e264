package queryir

import (
	"strings"

	"github.com/roach88/typesql/internal/datatype"
)

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq   CompareOp = "="
	OpNe   CompareOp = "!="
	OpLt   CompareOp = "<"
	OpLe   CompareOp = "<="
	OpGt   CompareOp = ">"
	OpGe   CompareOp = ">="
	OpLike CompareOp = "LIKE"
)

// LogicalOp combines two boolean expressions.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// AggregateFunc names an aggregate function.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggAvg   AggregateFunc = "AVG"
)

// Comparator is left <op> right.
type Comparator struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

func (Comparator) node()       {}
func (Comparator) expression() {}

func (c Comparator) Tag() Tag { return Tag{ClassOperator, "binary", string(c.Op)} }
func (c Comparator) DataType() datatype.Type {
	return booleanOf(c.Left, c.Right)
}
func (c Comparator) IsAggregate() bool         { return anyAggregate(c.Left, c.Right) }
func (c Comparator) ColumnRefs() []ColumnRef   { return collectRefs(c.Left, c.Right) }
func (c Comparator) InferredAliases() []string { return nil }

// Logical is (left) AND|OR (right).
type Logical struct {
	Op    LogicalOp
	Left  Expression
	Right Expression
}

func (Logical) node()       {}
func (Logical) expression() {}

func (l Logical) Tag() Tag                  { return Tag{ClassOperator, "binary", string(l.Op)} }
func (l Logical) DataType() datatype.Type   { return booleanOf(l.Left, l.Right) }
func (l Logical) IsAggregate() bool         { return anyAggregate(l.Left, l.Right) }
func (l Logical) ColumnRefs() []ColumnRef   { return collectRefs(l.Left, l.Right) }
func (l Logical) InferredAliases() []string { return nil }

// NullTest is operand IS [NOT] NULL, a right-unary operator.
type NullTest struct {
	Operand Expression
	Not     bool
}

func (NullTest) node()       {}
func (NullTest) expression() {}

func (n NullTest) Tag() Tag                  { return Tag{ClassOperator, "right_unary", n.Keyword()} }
func (n NullTest) DataType() datatype.Type   { return datatype.Boolean{} }
func (n NullTest) IsAggregate() bool         { return n.Operand.IsAggregate() }
func (n NullTest) ColumnRefs() []ColumnRef   { return n.Operand.ColumnRefs() }
func (n NullTest) InferredAliases() []string { return nil }

// Keyword returns "IS NULL" or "IS NOT NULL".
func (n NullTest) Keyword() string {
	if n.Not {
		return "IS NOT NULL"
	}
	return "IS NULL"
}

// Not is NOT operand, a left-unary operator.
type Not struct {
	Operand Expression
}

func (Not) node()       {}
func (Not) expression() {}

func (n Not) Tag() Tag                  { return Tag{ClassOperator, "left_unary", "NOT"} }
func (n Not) DataType() datatype.Type   { return n.Operand.DataType() }
func (n Not) IsAggregate() bool         { return n.Operand.IsAggregate() }
func (n Not) ColumnRefs() []ColumnRef   { return n.Operand.ColumnRefs() }
func (n Not) InferredAliases() []string { return nil }

// InList is left [NOT] IN (items...).
type InList struct {
	Left  Expression
	Items []Expression
	Not   bool
}

func (InList) node()       {}
func (InList) expression() {}

func (i InList) Tag() Tag                  { return Tag{ClassOperator, "binary", inKeyword(i.Not)} }
func (i InList) DataType() datatype.Type   { return booleanOf(append([]Expression{i.Left}, i.Items...)...) }
func (i InList) IsAggregate() bool         { return anyAggregate(append([]Expression{i.Left}, i.Items...)...) }
func (i InList) ColumnRefs() []ColumnRef   { return collectRefs(append([]Expression{i.Left}, i.Items...)...) }
func (i InList) InferredAliases() []string { return nil }

// InSubquery is left [NOT] IN (SELECT ...). The sub-query may reference
// entities of the enclosing query.
type InSubquery struct {
	Left  Expression
	Query *Select
	Not   bool
}

func (InSubquery) node()       {}
func (InSubquery) expression() {}

func (i InSubquery) Tag() Tag                  { return Tag{ClassOperator, "binary", inKeyword(i.Not) + " SUBQUERY"} }
func (i InSubquery) DataType() datatype.Type   { return datatype.MakeNullable(datatype.Boolean{}) }
func (i InSubquery) IsAggregate() bool         { return i.Left.IsAggregate() }
func (i InSubquery) ColumnRefs() []ColumnRef   { return i.Left.ColumnRefs() }
func (i InSubquery) InferredAliases() []string { return nil }

func inKeyword(not bool) string {
	if not {
		return "NOT IN"
	}
	return "IN"
}

// PathStep is one step of a JSON path: an object key or an array index.
type PathStep struct {
	Key     string
	Index   int
	IsIndex bool
}

// JSONPath traverses a JSON value. Every step but the last renders as ->;
// the last renders as ->> when AsText is set.
type JSONPath struct {
	Base   Expression
	Steps  []PathStep
	AsText bool
}

func (JSONPath) node()       {}
func (JSONPath) expression() {}

func (j JSONPath) Tag() Tag {
	if j.AsText {
		return Tag{ClassExpression, "json_path", "text"}
	}
	return Tag{ClassExpression, "json_path", "json"}
}

func (j JSONPath) DataType() datatype.Type {
	if j.AsText {
		return datatype.MakeNullable(datatype.Varchar{})
	}
	return datatype.MakeNullable(datatype.JSON{})
}

func (j JSONPath) IsAggregate() bool       { return j.Base.IsAggregate() }
func (j JSONPath) ColumnRefs() []ColumnRef { return j.Base.ColumnRefs() }

func (j JSONPath) InferredAliases() []string {
	if len(j.Steps) == 0 {
		return j.Base.InferredAliases()
	}
	last := j.Steps[len(j.Steps)-1]
	if last.IsIndex {
		return nil
	}
	return []string{last.Key}
}

// Bracket is (inner).
type Bracket struct {
	Inner Expression
}

func (Bracket) node()       {}
func (Bracket) expression() {}

func (b Bracket) Tag() Tag                  { return Tag{ClassExpression, "bracket", "bracket"} }
func (b Bracket) DataType() datatype.Type   { return b.Inner.DataType() }
func (b Bracket) IsAggregate() bool         { return b.Inner.IsAggregate() }
func (b Bracket) ColumnRefs() []ColumnRef   { return b.Inner.ColumnRefs() }
func (b Bracket) InferredAliases() []string { return b.Inner.InferredAliases() }

// If is CASE WHEN cond THEN then ELSE else END. Type is the merge of the
// branch domains and is fixed at construction.
type If struct {
	Cond Expression
	Then Expression
	Else Expression
	Type datatype.Type
}

func (If) node()       {}
func (If) expression() {}

func (i If) Tag() Tag                  { return Tag{ClassExpression, "if", "case"} }
func (i If) DataType() datatype.Type   { return i.Type }
func (i If) IsAggregate() bool         { return anyAggregate(i.Cond, i.Then, i.Else) }
func (i If) ColumnRefs() []ColumnRef   { return collectRefs(i.Cond, i.Then, i.Else) }
func (i If) InferredAliases() []string { return nil }

// Aggregate is FUNC([DISTINCT] arg); a nil Arg means COUNT(*). Column
// references inside an aggregate are not reported by ColumnRefs.
type Aggregate struct {
	Func     AggregateFunc
	Arg      Expression
	Distinct bool
}

func (Aggregate) node()       {}
func (Aggregate) expression() {}

func (a Aggregate) Tag() Tag                { return Tag{ClassExpression, "aggregate", string(a.Func)} }
func (a Aggregate) IsAggregate() bool       { return true }
func (a Aggregate) ColumnRefs() []ColumnRef { return nil }

func (a Aggregate) InferredAliases() []string {
	return []string{strings.ToLower(string(a.Func))}
}

func (a Aggregate) DataType() datatype.Type {
	switch a.Func {
	case AggCount:
		return datatype.Int{}
	case AggAvg:
		return datatype.MakeNullable(datatype.Float{})
	default:
		if a.Arg == nil {
			return datatype.MakeNullable(datatype.Int{})
		}
		return datatype.MakeNullable(a.Arg.DataType())
	}
}

func booleanOf(operands ...Expression) datatype.Type {
	for _, o := range operands {
		if datatype.IsNullable(o.DataType()) {
			return datatype.MakeNullable(datatype.Boolean{})
		}
	}
	return datatype.Boolean{}
}

func anyAggregate(operands ...Expression) bool {
	for _, o := range operands {
		if o != nil && o.IsAggregate() {
			return true
		}
	}
	return false
}

// collectRefs unions the column references of the operands, keeping first
// occurrence order.
func collectRefs(operands ...Expression) []ColumnRef {
	var out []ColumnRef
	seen := map[string]bool{}
	for _, o := range operands {
		if o == nil {
			continue
		}
		for _, r := range o.ColumnRefs() {
			if !seen[r.Key()] {
				seen[r.Key()] = true
				out = append(out, r)
			}
		}
	}
	return out
}
