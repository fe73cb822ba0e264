// Package querysql compiles queryir nodes to parameterized SQL text.
//
// Values are never interpolated into the SQL: every constant becomes a
// bound parameter of the resulting sqltext.Text, except in DDL where
// parameters are inlined as escaped literals.
package querysql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
	"github.com/roach88/typesql/internal/sqltext"
)

// Dialect selects dialect-specific rendering.
type Dialect int

const (
	// Postgres renders $n placeholders, to_jsonb row projections and
	// ARRAY[...]::T[] constants.
	Postgres Dialect = iota
	// SQLite renders ? placeholders, json_object row projections and
	// json_array constants.
	SQLite
	// Cockroach renders queries like Postgres; index DDL uses STORING and
	// INVERTED.
	Cockroach
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Cockroach:
		return "cockroach"
	default:
		return "postgres"
	}
}

// ParseDialect reads a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "postgres", "postgresql", "":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "cockroach", "cockroachdb", "crdb":
		return Cockroach, nil
	}
	return Postgres, fmt.Errorf("unknown dialect %q", s)
}

// Placeholders returns the placeholder style the dialect binds with.
func (d Dialect) Placeholders() sqltext.PlaceholderStyle {
	if d == SQLite {
		return sqltext.Question
	}
	return sqltext.Dollar
}

// SQLCompiler compiles nodes for one dialect. It holds no state between
// calls and is safe for concurrent use.
type SQLCompiler struct {
	Dialect Dialect

	// bareColumns renders column references without their table alias,
	// as index DDL requires.
	bareColumns bool
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile compiles node with the Postgres dialect. parent is the node it is
// rendered under, or nil at the top level.
func Compile(node, parent queryir.Node) (sqltext.Text, error) {
	return NewSQLCompiler(Postgres).Compile(node, parent)
}

// Compile recursively compiles node. parent is the immediate enclosing node
// (nil at the top level); operators rendered under another operator are
// parenthesized.
func (c *SQLCompiler) Compile(node, parent queryir.Node) (sqltext.Text, error) {
	if node == nil {
		return sqltext.Text{}, fmt.Errorf("cannot compile nil node")
	}

	var (
		txt sqltext.Text
		err error
	)
	switch n := node.(type) {
	case queryir.ColumnRef:
		if c.bareColumns {
			txt = sqltext.Identifier(n.Column)
		} else {
			txt = sqltext.Identifier(n.Table, n.Column)
		}
	case queryir.Constant:
		txt, err = c.compileConstant(n)
	case queryir.ArrayConstant:
		txt, err = c.compileArray(n)
	case queryir.Comparator:
		txt, err = c.compileComparator(n)
	case queryir.Logical:
		txt, err = c.compileLogical(n)
	case queryir.NullTest:
		txt, err = c.compileNullTest(n)
	case queryir.Not:
		txt, err = c.compileNot(n)
	case queryir.InList:
		txt, err = c.compileInList(n)
	case queryir.InSubquery:
		txt, err = c.compileInSubquery(n)
	case queryir.JSONPath:
		txt, err = c.compileJSONPath(n)
	case queryir.Bracket:
		txt, err = c.compileBracket(n)
	case queryir.If:
		txt, err = c.compileIf(n)
	case queryir.Aggregate:
		txt, err = c.compileAggregate(n)
	case queryir.WholeRow:
		txt = c.compileWholeRow(n)
	case queryir.Table:
		txt = compileTable(n)
	case queryir.Join:
		txt, err = c.compileJoin(n)
	case queryir.SelectItem:
		txt, err = c.compileSelectItem(n)
	case queryir.OrderItem:
		txt, err = c.compileOrderItem(n)
	case queryir.Limit:
		txt = compileLimit(n)
	case queryir.Select:
		txt, err = c.compileSelect(&n)
	case *queryir.Select:
		txt, err = c.compileSelect(n)
	default:
		return sqltext.Text{}, sqlerr.NewUnsupportedNode("querysql.Compile", node)
	}
	if err != nil {
		return sqltext.Text{}, err
	}

	if isOperator(node) && wrapsOperands(parent) {
		txt = txt.Wrap()
	}
	return txt, nil
}

// isOperator reports whether n renders as an unparenthesized operator
// expression.
func isOperator(n queryir.Node) bool {
	switch n.(type) {
	case queryir.Comparator, queryir.Logical, queryir.NullTest, queryir.Not,
		queryir.InList, queryir.InSubquery:
		return true
	}
	return false
}

// wrapsOperands reports whether operator children rendered under parent
// need their own parentheses. Logical operators parenthesize both sides
// themselves.
func wrapsOperands(parent queryir.Node) bool {
	switch parent.(type) {
	case queryir.Comparator, queryir.NullTest, queryir.Not, queryir.InList,
		queryir.InSubquery, queryir.JSONPath:
		return true
	}
	return false
}

func (c *SQLCompiler) compileConstant(n queryir.Constant) (sqltext.Text, error) {
	if n.Value == nil {
		return sqltext.Raw("NULL"), nil
	}
	if !datatype.IsJSON(n.Type) {
		return sqltext.Param(n.Value), nil
	}

	encoded, err := json.Marshal(n.Value)
	if err != nil {
		return sqltext.Text{}, fmt.Errorf("encode json constant: %w", err)
	}
	if c.Dialect == SQLite {
		return sqltext.Format("json(%v)", string(encoded)), nil
	}
	return sqltext.Format("%v::jsonb", string(encoded)), nil
}

func (c *SQLCompiler) compileArray(n queryir.ArrayConstant) (sqltext.Text, error) {
	elems, err := c.compileList(n.Elems, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	if c.Dialect == SQLite {
		return sqltext.Format("json_array(%v)", sqltext.Join(elems, sqltext.Raw(", "))), nil
	}
	typeName, err := datatype.SQLName(n.Type)
	if err != nil {
		return sqltext.Text{}, sqlerr.NewUnsupportedCoercion(n.Elems, n.Type, err.Error())
	}
	return sqltext.Format("ARRAY[%v]::"+typeName, sqltext.Join(elems, sqltext.Raw(","))), nil
}

func (c *SQLCompiler) compileList(items []queryir.Expression, parent queryir.Node) ([]sqltext.Text, error) {
	out := make([]sqltext.Text, len(items))
	for i, item := range items {
		txt, err := c.Compile(item, parent)
		if err != nil {
			return nil, err
		}
		out[i] = txt
	}
	return out, nil
}

func (c *SQLCompiler) compileComparator(n queryir.Comparator) (sqltext.Text, error) {
	left, err := c.Compile(n.Left, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	right, err := c.Compile(n.Right, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Format("%v "+string(n.Op)+" %v", left, right), nil
}

func (c *SQLCompiler) compileLogical(n queryir.Logical) (sqltext.Text, error) {
	left, err := c.Compile(n.Left, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	right, err := c.Compile(n.Right, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Format("%v "+string(n.Op)+" %v", bracketed(n.Left, left), bracketed(n.Right, right)), nil
}

// bracketed wraps txt unless the expression already renders its own
// parentheses.
func bracketed(e queryir.Expression, txt sqltext.Text) sqltext.Text {
	if _, ok := e.(queryir.Bracket); ok {
		return txt
	}
	return txt.Wrap()
}

func (c *SQLCompiler) compileNullTest(n queryir.NullTest) (sqltext.Text, error) {
	operand, err := c.Compile(n.Operand, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return operand.Append(sqltext.Raw(" " + n.Keyword())), nil
}

func (c *SQLCompiler) compileNot(n queryir.Not) (sqltext.Text, error) {
	operand, err := c.Compile(n.Operand, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Raw("NOT ").Append(operand), nil
}

func (c *SQLCompiler) compileInList(n queryir.InList) (sqltext.Text, error) {
	if len(n.Items) == 0 {
		// x IN () is not valid SQL; an empty list matches nothing.
		if n.Not {
			return sqltext.Raw("TRUE"), nil
		}
		return sqltext.Raw("FALSE"), nil
	}
	left, err := c.Compile(n.Left, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	items, err := c.compileList(n.Items, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Format("%v "+n.Tag().Type+" (%v)", left, sqltext.Join(items, sqltext.Raw(", "))), nil
}

func (c *SQLCompiler) compileInSubquery(n queryir.InSubquery) (sqltext.Text, error) {
	left, err := c.Compile(n.Left, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	sub, err := c.compileSelect(n.Query)
	if err != nil {
		return sqltext.Text{}, fmt.Errorf("compile sub-query: %w", err)
	}
	keyword := "IN"
	if n.Not {
		keyword = "NOT IN"
	}
	return sqltext.Format("%v "+keyword+" (%v)", left, sub), nil
}

func (c *SQLCompiler) compileJSONPath(n queryir.JSONPath) (sqltext.Text, error) {
	txt, err := c.Compile(n.Base, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	for i, step := range n.Steps {
		op := "->"
		if n.AsText && i == len(n.Steps)-1 {
			op = "->>"
		}
		if step.IsIndex {
			txt = txt.Append(sqltext.Raw(op + strconv.Itoa(step.Index)))
		} else {
			txt = txt.Append(sqltext.Raw(op), sqltext.StringLiteral(step.Key))
		}
	}
	return txt, nil
}

func (c *SQLCompiler) compileBracket(n queryir.Bracket) (sqltext.Text, error) {
	inner, err := c.Compile(n.Inner, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return inner.Wrap(), nil
}

func (c *SQLCompiler) compileIf(n queryir.If) (sqltext.Text, error) {
	cond, err := c.Compile(n.Cond, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	then, err := c.Compile(n.Then, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	els, err := c.Compile(n.Else, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Format("CASE WHEN %v THEN %v ELSE %v END", cond, then, els), nil
}

func (c *SQLCompiler) compileAggregate(n queryir.Aggregate) (sqltext.Text, error) {
	if n.Arg == nil {
		return sqltext.Raw(string(n.Func) + "(*)"), nil
	}
	arg, err := c.Compile(n.Arg, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	prefix := string(n.Func) + "("
	if n.Distinct {
		prefix += "DISTINCT "
	}
	return sqltext.Concat(sqltext.Raw(prefix), arg, sqltext.Raw(")")), nil
}

func (c *SQLCompiler) compileWholeRow(n queryir.WholeRow) sqltext.Text {
	alias := n.Entity.Ref()
	if c.Dialect != SQLite {
		return sqltext.Format("to_jsonb(%v)", sqltext.Identifier(alias))
	}
	pairs := make([]sqltext.Text, len(n.Entity.Columns))
	for i, col := range n.Entity.Columns {
		value := sqltext.Identifier(alias, col.Name)
		switch datatype.NonNullable(col.Type).(type) {
		case datatype.JSON, datatype.Array:
			// stored as json text; nest it instead of embedding a string
			value = sqltext.Format("json(%v)", value)
		}
		pairs[i] = sqltext.Concat(sqltext.StringLiteral(col.Name), sqltext.Raw(", "), value)
	}
	obj := sqltext.Format("json_object(%v)", sqltext.Join(pairs, sqltext.Raw(", ")))
	if !n.Optional {
		return obj
	}
	// json_object over an unmatched LEFT JOIN still yields an object of nulls
	return sqltext.Format("CASE WHEN %v IS NULL THEN NULL ELSE %v END",
		sqltext.Identifier(alias, "rowid"), obj)
}

func compileTable(n queryir.Table) sqltext.Text {
	if n.Alias == "" || n.Alias == n.Name {
		return sqltext.Identifier(n.Name)
	}
	return sqltext.Format("%v AS %v", sqltext.Identifier(n.Name), sqltext.Identifier(n.Alias))
}

func (c *SQLCompiler) compileJoin(n queryir.Join) (sqltext.Text, error) {
	on, err := c.Compile(n.On, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	return sqltext.Format(string(n.Kind)+" JOIN %v ON %v", compileTable(n.Entity), on), nil
}

func (c *SQLCompiler) compileSelectItem(n queryir.SelectItem) (sqltext.Text, error) {
	expr, err := c.Compile(n.Expr, n)
	if err != nil {
		return sqltext.Text{}, err
	}
	name := n.OutputName()
	if ref, ok := n.Expr.(queryir.ColumnRef); ok && name == ref.Column {
		return expr, nil
	}
	if name == "" {
		return expr, nil
	}
	return sqltext.Format("%v AS %v", expr, sqltext.Identifier(name)), nil
}

func (c *SQLCompiler) compileOrderItem(n queryir.OrderItem) (sqltext.Text, error) {
	var txt sqltext.Text
	if n.Alias != "" {
		txt = sqltext.Identifier(n.Alias)
	} else {
		var err error
		if txt, err = c.Compile(n.Expr, n); err != nil {
			return sqltext.Text{}, err
		}
	}
	if n.Desc {
		return txt.Append(sqltext.Raw(" DESC")), nil
	}
	return txt.Append(sqltext.Raw(" ASC")), nil
}

func compileLimit(n queryir.Limit) sqltext.Text {
	txt := sqltext.Format("LIMIT %v", n.Count)
	if n.Offset > 0 {
		txt = txt.Append(sqltext.Format(" OFFSET %v", n.Offset))
	}
	return txt
}

// CompileSelect validates q and compiles it to a complete statement.
// Validation problems are reported as a single UNRESOLVED_REFERENCE error
// naming the first offending alias and column.
func (c *SQLCompiler) CompileSelect(q *queryir.Select) (sqltext.Text, error) {
	if q == nil {
		return sqltext.Text{}, fmt.Errorf("cannot compile nil query")
	}
	if result := queryir.Validate(q); !result.Valid {
		return sqltext.Text{}, invalidQuery(result.Problems)
	}
	return c.compileSelect(q)
}

func invalidQuery(problems []queryir.Problem) *sqlerr.Error {
	messages := make([]string, len(problems))
	for i, p := range problems {
		messages[i] = p.Message
	}
	first := problems[0]
	return &sqlerr.Error{
		Code:    sqlerr.CodeUnresolvedReference,
		Message: "invalid query: " + strings.Join(messages, "; "),
		Details: map[string]string{"alias": first.Alias, "column": first.Column},
	}
}

func (c *SQLCompiler) compileSelect(q *queryir.Select) (sqltext.Text, error) {
	projection := q.Projection()
	items := make([]sqltext.Text, len(projection))
	for i, item := range projection {
		txt, err := c.Compile(item, q)
		if err != nil {
			return sqltext.Text{}, err
		}
		items[i] = txt
	}

	clauses := []sqltext.Text{
		sqltext.Raw("SELECT ").Append(sqltext.Join(items, sqltext.Raw(", "))),
		sqltext.Raw("FROM ").Append(compileTable(q.From)),
	}
	for _, j := range q.Joins {
		txt, err := c.compileJoin(j)
		if err != nil {
			return sqltext.Text{}, err
		}
		clauses = append(clauses, txt)
	}
	if q.Where != nil {
		where, err := c.Compile(q.Where, q)
		if err != nil {
			return sqltext.Text{}, err
		}
		clauses = append(clauses, sqltext.Raw("WHERE ").Append(where))
	}
	if len(q.GroupBy) > 0 {
		groups, err := c.compileList(q.GroupBy, q)
		if err != nil {
			return sqltext.Text{}, err
		}
		clauses = append(clauses, sqltext.Raw("GROUP BY ").Append(sqltext.Join(groups, sqltext.Raw(", "))))
	}
	if len(q.OrderBy) > 0 {
		orders := make([]sqltext.Text, len(q.OrderBy))
		for i, o := range q.OrderBy {
			txt, err := c.compileOrderItem(o)
			if err != nil {
				return sqltext.Text{}, err
			}
			orders[i] = txt
		}
		clauses = append(clauses, sqltext.Raw("ORDER BY ").Append(sqltext.Join(orders, sqltext.Raw(", "))))
	}
	if q.Limit != nil {
		clauses = append(clauses, compileLimit(*q.Limit))
	}
	return sqltext.Join(clauses, sqltext.Raw(" ")), nil
}
