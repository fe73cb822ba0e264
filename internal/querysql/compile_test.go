package querysql

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

var (
	users = queryir.Table{Name: "users", Alias: "u", Columns: []queryir.ColumnDef{
		{Name: "id", Type: datatype.Int{}},
		{Name: "status", Type: datatype.Varchar{}},
		{Name: "deleted_at", Type: datatype.MakeNullable(datatype.Timestamp{})},
		{Name: "profile", Type: datatype.JSON{}},
	}}
	orders = queryir.Table{Name: "orders", Alias: "o", Columns: []queryir.ColumnDef{
		{Name: "id", Type: datatype.Int{}},
		{Name: "user_id", Type: datatype.Int{}},
		{Name: "total", Type: datatype.Float{}},
	}}
)

func col(t queryir.Table, name string) queryir.ColumnRef {
	def, ok := t.Column(name)
	if !ok {
		panic("no column " + name)
	}
	return queryir.ColumnRef{Table: t.Ref(), Column: name, Type: def.Type}
}

func str(s string) queryir.Constant { return queryir.Constant{Value: s, Type: datatype.Varchar{}} }
func num(n int64) queryir.Constant { return queryir.Constant{Value: n, Type: datatype.Int{}} }

func eq(l, r queryir.Expression) queryir.Comparator {
	return queryir.Comparator{Op: queryir.OpEq, Left: l, Right: r}
}

func snapshot(t *testing.T, query string, params []any) []byte {
	t.Helper()
	encoded, err := json.Marshal(params)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("%s\n%s\n", query, encoded))
}

func TestCompile_ComparisonBindsParameter(t *testing.T) {
	status := queryir.ColumnRef{Table: "t", Column: "status", Type: datatype.Varchar{}}

	txt, err := Compile(eq(status, str("active")), nil)
	require.NoError(t, err)

	assert.Equal(t, `"t"."status" = $1`, txt.Query())
	assert.Equal(t, []any{"active"}, txt.Parameters())
	assert.NotContains(t, txt.Query(), "active")
}

func TestCompile_LogicalWrapsOperands(t *testing.T) {
	node := queryir.Logical{
		Op:    queryir.OpAnd,
		Left:  eq(col(users, "id"), num(7)),
		Right: queryir.NullTest{Operand: col(users, "deleted_at")},
	}

	txt, err := Compile(node, nil)
	require.NoError(t, err)

	assert.Equal(t, `("u"."id" = $1) AND ("u"."deleted_at" IS NULL)`, txt.Query())
	assert.Equal(t, []any{int64(7)}, txt.Parameters())
}

func TestCompile_BracketIsNotDoubled(t *testing.T) {
	either := queryir.Logical{Op: queryir.OpOr, Left: eq(col(users, "id"), num(1)), Right: eq(col(users, "id"), num(2))}
	node := queryir.Logical{
		Op:    queryir.OpAnd,
		Left:  queryir.Bracket{Inner: either},
		Right: eq(col(users, "status"), str("active")),
	}

	txt, err := Compile(node, nil)
	require.NoError(t, err)

	assert.Equal(t, `(("u"."id" = $1) OR ("u"."id" = $2)) AND ("u"."status" = $3)`, txt.Query())
	assert.Equal(t, []any{int64(1), int64(2), "active"}, txt.Parameters())
}

func TestCompile_OperatorUnderOperatorIsParenthesized(t *testing.T) {
	testCases := []struct {
		name string
		node queryir.Node
		want string
	}{
		{
			name: "comparison of comparison",
			node: eq(eq(col(users, "id"), num(1)), queryir.Constant{Value: true, Type: datatype.Boolean{}}),
			want: `("u"."id" = $1) = $2`,
		},
		{
			name: "null test of comparison",
			node: queryir.NullTest{Operand: eq(col(users, "id"), num(1)), Not: true},
			want: `("u"."id" = $1) IS NOT NULL`,
		},
		{
			name: "not of comparison",
			node: queryir.Not{Operand: eq(col(users, "id"), num(1))},
			want: `NOT ("u"."id" = $1)`,
		},
		{
			name: "not of column",
			node: queryir.Not{Operand: queryir.ColumnRef{Table: "u", Column: "active", Type: datatype.Boolean{}}},
			want: `NOT "u"."active"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			txt, err := Compile(tc.node, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, txt.Query())
		})
	}
}

func TestCompile_ArrayConstant(t *testing.T) {
	arr := queryir.ArrayConstant{
		Elems: []queryir.Expression{str("a"), str("b"), str("c")},
		Type:  datatype.Array{Elem: datatype.Varchar{}},
	}

	pg, err := NewSQLCompiler(Postgres).Compile(arr, nil)
	require.NoError(t, err)
	assert.Equal(t, `ARRAY[$1,$2,$3]::VARCHAR[]`, pg.Query())
	assert.Equal(t, []any{"a", "b", "c"}, pg.Parameters())

	lite, err := NewSQLCompiler(SQLite).Compile(arr, nil)
	require.NoError(t, err)
	assert.Equal(t, `json_array(?, ?, ?)`, lite.QueryFor(SQLite.Placeholders()))
}

func TestCompile_JSONConstant(t *testing.T) {
	c := queryir.Constant{Value: map[string]any{"a": 1}, Type: datatype.JSON{}}

	pg, err := NewSQLCompiler(Postgres).Compile(c, nil)
	require.NoError(t, err)
	assert.Equal(t, `$1::jsonb`, pg.Query())
	assert.Equal(t, []any{`{"a":1}`}, pg.Parameters())

	lite, err := NewSQLCompiler(SQLite).Compile(c, nil)
	require.NoError(t, err)
	assert.Equal(t, `json(?)`, lite.QueryFor(SQLite.Placeholders()))
}

func TestCompile_NilConstantRendersNull(t *testing.T) {
	txt, err := Compile(queryir.Constant{Value: nil, Type: datatype.Null{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "NULL", txt.Query())
	assert.Empty(t, txt.Parameters())
}

func TestCompile_JSONPath(t *testing.T) {
	testCases := []struct {
		name string
		node queryir.JSONPath
		want string
	}{
		{
			name: "text leaf",
			node: queryir.JSONPath{Base: col(users, "profile"), Steps: []queryir.PathStep{{Key: "address"}, {Key: "city"}}, AsText: true},
			want: `"u"."profile"->'address'->>'city'`,
		},
		{
			name: "json leaf with index",
			node: queryir.JSONPath{Base: col(users, "profile"), Steps: []queryir.PathStep{{Key: "tags"}, {Index: 0, IsIndex: true}}},
			want: `"u"."profile"->'tags'->0`,
		},
		{
			name: "key is escaped",
			node: queryir.JSONPath{Base: col(users, "profile"), Steps: []queryir.PathStep{{Key: "o'brien"}}, AsText: true},
			want: `"u"."profile"->>'o''brien'`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			txt, err := Compile(tc.node, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, txt.Query())
			assert.Empty(t, txt.Parameters())
		})
	}
}

func TestCompile_InList(t *testing.T) {
	in := queryir.InList{Left: col(users, "status"), Items: []queryir.Expression{str("a"), str("b")}}

	txt, err := Compile(in, nil)
	require.NoError(t, err)
	assert.Equal(t, `"u"."status" IN ($1, $2)`, txt.Query())

	in.Not = true
	txt, err = Compile(in, nil)
	require.NoError(t, err)
	assert.Equal(t, `"u"."status" NOT IN ($1, $2)`, txt.Query())

	empty, err := Compile(queryir.InList{Left: col(users, "status")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "FALSE", empty.Query())
}

func TestCompile_InSubquery(t *testing.T) {
	sub := &queryir.Select{
		From:     orders,
		Items:    []queryir.SelectItem{{Expr: col(orders, "user_id")}},
		Explicit: true,
		Where:    queryir.Comparator{Op: queryir.OpGt, Left: col(orders, "total"), Right: queryir.Constant{Value: 100.0, Type: datatype.Float{}}},
	}
	node := queryir.Logical{
		Op:    queryir.OpAnd,
		Left:  eq(col(users, "status"), str("active")),
		Right: queryir.InSubquery{Left: col(users, "id"), Query: sub},
	}

	txt, err := Compile(node, nil)
	require.NoError(t, err)
	assert.Equal(t,
		`("u"."status" = $1) AND ("u"."id" IN (SELECT "o"."user_id" FROM "orders" AS "o" WHERE "o"."total" > $2))`,
		txt.Query())
	assert.Equal(t, []any{"active", 100.0}, txt.Parameters())
}

func TestCompile_IfAndAggregates(t *testing.T) {
	cond := queryir.If{
		Cond: queryir.Comparator{Op: queryir.OpGt, Left: col(orders, "total"), Right: queryir.Constant{Value: 10.0, Type: datatype.Float{}}},
		Then: str("big"),
		Else: str("small"),
		Type: datatype.Varchar{},
	}
	txt, err := Compile(cond, nil)
	require.NoError(t, err)
	assert.Equal(t, `CASE WHEN "o"."total" > $1 THEN $2 ELSE $3 END`, txt.Query())
	assert.Equal(t, []any{10.0, "big", "small"}, txt.Parameters())

	count, err := Compile(queryir.Aggregate{Func: queryir.AggCount}, nil)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(*)", count.Query())

	sum, err := Compile(queryir.Aggregate{Func: queryir.AggSum, Arg: col(orders, "total"), Distinct: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SUM(DISTINCT "o"."total")`, sum.Query())
}

func TestCompile_NestedConcatenationStaysContiguous(t *testing.T) {
	var node queryir.Expression = eq(col(users, "id"), num(0))
	for i := 1; i <= 10; i++ {
		node = queryir.Logical{Op: queryir.OpOr, Left: node, Right: eq(col(users, "id"), num(int64(i)))}
	}

	txt, err := Compile(node, nil)
	require.NoError(t, err)

	params := txt.Parameters()
	require.Len(t, params, 11)
	for i, p := range params {
		assert.Equal(t, int64(i), p)
	}
	assert.Contains(t, txt.Query(), "$11")
	assert.NotContains(t, txt.Query(), "$12")
}

type unknownNode struct {
	queryir.ColumnRef
}

func TestCompile_UnsupportedNode(t *testing.T) {
	_, err := Compile(unknownNode{col(users, "id")}, nil)
	require.Error(t, err)
	assert.True(t, sqlerr.IsUnsupportedNode(err))

	_, err = Compile(nil, nil)
	require.Error(t, err)
}

func TestCompile_UnsupportedNodeNestedInOperator(t *testing.T) {
	_, err := Compile(eq(unknownNode{col(users, "id")}, num(1)), nil)
	require.Error(t, err)
	assert.True(t, sqlerr.IsUnsupportedNode(err))
}

func defaultProjectionQuery() *queryir.Select {
	return &queryir.Select{
		From: users,
		Joins: []queryir.Join{{
			Kind:   queryir.JoinLeft,
			Entity: orders,
			On:     eq(col(orders, "user_id"), col(users, "id")),
		}},
		Where:   eq(col(users, "status"), str("active")),
		OrderBy: []queryir.OrderItem{{Expr: col(users, "id"), Desc: true}},
		Limit:   &queryir.Limit{Count: 10},
	}
}

func groupedQuery() *queryir.Select {
	return &queryir.Select{
		From: users,
		Items: []queryir.SelectItem{
			{Expr: col(users, "status")},
			{Expr: queryir.Aggregate{Func: queryir.AggCount}, Alias: "n"},
		},
		Explicit: true,
		GroupBy:  []queryir.Expression{col(users, "status")},
		OrderBy:  []queryir.OrderItem{{Alias: "n", Desc: true}},
		Limit:    &queryir.Limit{Count: 5, Offset: 10},
	}
}

func TestCompileSelect_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	testCases := []struct {
		name    string
		dialect Dialect
		query   *queryir.Select
	}{
		{"select_default_projection_postgres", Postgres, defaultProjectionQuery()},
		{"select_default_projection_sqlite", SQLite, defaultProjectionQuery()},
		{"select_grouped_postgres", Postgres, groupedQuery()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			txt, err := NewSQLCompiler(tc.dialect).CompileSelect(tc.query)
			require.NoError(t, err)
			g.Assert(t, tc.name, snapshot(t, txt.QueryFor(tc.dialect.Placeholders()), txt.Parameters()))
		})
	}
}

func TestCompileSelect_ValidationFailure(t *testing.T) {
	q := defaultProjectionQuery()
	q.Where = eq(queryir.ColumnRef{Table: "u", Column: "missing", Type: datatype.Int{}}, num(1))

	_, err := NewSQLCompiler(Postgres).CompileSelect(q)
	require.Error(t, err)
	assert.True(t, sqlerr.IsUnresolvedReference(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestCompileSelect_UngroupedColumn(t *testing.T) {
	q := groupedQuery()
	q.Items = append(q.Items, queryir.SelectItem{Expr: col(users, "id")})

	_, err := NewSQLCompiler(Postgres).CompileSelect(q)
	require.Error(t, err)
	assert.True(t, sqlerr.IsUnresolvedReference(err))
}

func TestSelectItem_AliasRendering(t *testing.T) {
	testCases := []struct {
		name string
		item queryir.SelectItem
		want string
	}{
		{"bare column", queryir.SelectItem{Expr: col(users, "status")}, `"u"."status"`},
		{"aliased column", queryir.SelectItem{Expr: col(users, "status"), Alias: "state"}, `"u"."status" AS "state"`},
		{"json path infers key", queryir.SelectItem{Expr: queryir.JSONPath{Base: col(users, "profile"), Steps: []queryir.PathStep{{Key: "city"}}, AsText: true}}, `"u"."profile"->>'city' AS "city"`},
		{"whole row", queryir.SelectItem{Expr: queryir.WholeRow{Entity: users}}, `to_jsonb("u") AS "u"`},
		{"constant", queryir.SelectItem{Expr: num(1)}, `$1`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			txt, err := Compile(tc.item, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, txt.Query())
		})
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	assert.Equal(t, "sqlite", d.String())

	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
