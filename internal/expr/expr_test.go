package expr

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/querysql"
	"github.com/roach88/typesql/internal/sqlerr"
)

func ref(table, column string, t datatype.Type) Expr {
	return Col(queryir.ColumnRef{Table: table, Column: column, Type: t})
}

var (
	id        = ref("u", "id", datatype.Int{})
	status    = ref("t", "status", datatype.Varchar{})
	active    = ref("u", "active", datatype.Boolean{})
	createdAt = ref("u", "created_at", datatype.Timestamp{})
	deletedAt = ref("u", "deleted_at", datatype.MakeNullable(datatype.Timestamp{}))
	profile   = ref("u", "profile", datatype.JSON{})
	score     = ref("u", "score", datatype.Float{})
)

func compile(t *testing.T, e Expr) (string, []any) {
	t.Helper()
	txt, err := querysql.Compile(e.Node(), nil)
	require.NoError(t, err)
	return txt.Query(), txt.Parameters()
}

func TestEquals_CoercesToColumnDomain(t *testing.T) {
	cond, err := status.Equals("active")
	require.NoError(t, err)

	sql, params := compile(t, cond)
	assert.Equal(t, `"t"."status" = $1`, sql)
	assert.Equal(t, []any{"active"}, params)
	assert.True(t, datatype.IsBoolean(cond.DataType()))
}

func TestAnd_WithNullTest(t *testing.T) {
	left := Must(id.Equals(ref("u", "owner_id", datatype.Int{})))
	cond, err := left.And(Must(deletedAt.IsNull()))
	require.NoError(t, err)

	sql, params := compile(t, cond)
	assert.Equal(t, `("u"."id" = "u"."owner_id") AND ("u"."deleted_at" IS NULL)`, sql)
	assert.Empty(t, params)

	_, err = createdAt.IsNull()
	require.Error(t, err)
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestCompare_CompatibilityClasses(t *testing.T) {
	testCases := []struct {
		name  string
		left  Expr
		right Expr
		ok    bool
	}{
		{"int with float", id, score, true},
		{"int with boolean", id, active, true},
		{"int with timestamp", id, createdAt, true},
		{"boolean with timestamp", active, createdAt, false},
		{"varchar with int", status, id, false},
		{"json with varchar", profile, status, false},
		{"nullable timestamp with timestamp", deletedAt, createdAt, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.left.Equals(tc.right)
			_, reverse := tc.right.Equals(tc.left)
			if tc.ok {
				assert.NoError(t, err)
				assert.NoError(t, reverse)
				return
			}
			require.Error(t, err)
			require.Error(t, reverse)
			assert.True(t, sqlerr.IsTypeMismatch(err))
			assert.Contains(t, err.Error(), tc.left.DataType().String())
		})
	}
}

func TestCompare_Operators(t *testing.T) {
	build := map[string]func(any) (Expr, error){
		"=":  id.Equals,
		"!=": id.NotEquals,
		"<":  id.LessThan,
		"<=": id.LessThanOrEqual,
		">":  id.GreaterThan,
		">=": id.GreaterThanOrEqual,
	}
	for op, fn := range build {
		t.Run(op, func(t *testing.T) {
			cond, err := fn(3)
			require.NoError(t, err)
			sql, params := compile(t, cond)
			assert.Equal(t, `"u"."id" `+op+` $1`, sql)
			assert.Equal(t, []any{int64(3)}, params)
		})
	}
}

func TestLike_RequiresText(t *testing.T) {
	cond, err := status.Like("act%")
	require.NoError(t, err)
	sql, _ := compile(t, cond)
	assert.Equal(t, `"t"."status" LIKE $1`, sql)

	_, err = id.Like("1%")
	require.Error(t, err)
}

func TestCoercion_Failures(t *testing.T) {
	testCases := []struct {
		name string
		left Expr
		v    any
	}{
		{"string for timestamp", createdAt, "2024-01-01"},
		{"string for int", id, "1"},
		{"float for int", id, 1.5},
		{"int for boolean", active, 1},
		{"nil", status, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.left.Equals(tc.v)
			require.Error(t, err)
			assert.True(t, sqlerr.IsUnsupportedCoercion(err))
		})
	}
}

func TestCoerce_Values(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	testCases := []struct {
		name   string
		v      any
		target datatype.Type
		want   any
	}{
		{"int32 normalizes", int32(7), datatype.Int{}, int64(7)},
		{"int for float", 2, datatype.Float{}, 2.0},
		{"timestamp", ts, datatype.MakeNullable(datatype.Timestamp{}), ts},
		{"uuid as varchar", u, datatype.Varchar{}, u.String()},
		{"bool", true, datatype.Boolean{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			node, err := Coerce(tc.v, tc.target)
			require.NoError(t, err)
			c, ok := node.(queryir.Constant)
			require.True(t, ok)
			assert.Equal(t, tc.want, c.Value)
			assert.False(t, datatype.IsNullable(c.Type))
		})
	}
}

func TestCoerce_Array(t *testing.T) {
	node, err := Coerce([]string{"a", "b", "c"}, datatype.Array{Elem: datatype.Varchar{}})
	require.NoError(t, err)

	txt, err := querysql.Compile(node, nil)
	require.NoError(t, err)
	assert.Equal(t, `ARRAY[$1,$2,$3]::VARCHAR[]`, txt.Query())
	assert.Equal(t, []any{"a", "b", "c"}, txt.Parameters())

	_, err = Coerce("abc", datatype.Array{Elem: datatype.Varchar{}})
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))

	_, err = Coerce([]any{"a", 1}, datatype.Array{Elem: datatype.Varchar{}})
	require.Error(t, err)
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))
	assert.Contains(t, err.Error(), "element 1")

	rowElem := datatype.Array{Elem: datatype.Row{Fields: []datatype.Field{{Name: "a", Type: datatype.Int{}}}}}
	_, err = Coerce([]any{map[string]any{"a": 1}}, rowElem)
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))

	_, err = Coerce([]any{}, datatype.Tuple{Elems: []datatype.Type{datatype.Int{}}})
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))
}

func TestLogical_RequiresBoolean(t *testing.T) {
	_, err := id.And(active)
	require.Error(t, err)
	assert.True(t, sqlerr.IsTypeMismatch(err))

	cond, err := active.Or(false)
	require.NoError(t, err)
	sql, params := compile(t, cond)
	assert.Equal(t, `("u"."active") OR ($1)`, sql)
	assert.Equal(t, []any{false}, params)
}

func TestNot(t *testing.T) {
	cond, err := Must(status.Equals("x")).Not()
	require.NoError(t, err)
	sql, _ := compile(t, cond)
	assert.Equal(t, `NOT ("t"."status" = $1)`, sql)

	_, err = status.Not()
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestIn(t *testing.T) {
	cond, err := status.In("a", "b")
	require.NoError(t, err)
	sql, params := compile(t, cond)
	assert.Equal(t, `"t"."status" IN ($1, $2)`, sql)
	assert.Equal(t, []any{"a", "b"}, params)

	_, err = status.NotIn("a", 2)
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))

	_, err = status.In(id)
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestInQuery(t *testing.T) {
	orders := queryir.Table{Name: "orders", Alias: "o", Columns: []queryir.ColumnDef{
		{Name: "user_id", Type: datatype.Int{}},
	}}
	sub := &queryir.Select{
		From:     orders,
		Items:    []queryir.SelectItem{{Expr: queryir.ColumnRef{Table: "o", Column: "user_id", Type: datatype.Int{}}}},
		Explicit: true,
	}

	cond, err := id.InQuery(sub)
	require.NoError(t, err)
	sql, _ := compile(t, cond)
	assert.Equal(t, `"u"."id" IN (SELECT "o"."user_id" FROM "orders" AS "o")`, sql)

	_, err = status.NotInQuery(sub)
	assert.True(t, sqlerr.IsTypeMismatch(err))

	_, err = id.InQuery(&queryir.Select{From: orders})
	assert.Error(t, err)

	rows := &queryir.Select{
		From:     orders,
		Items:    []queryir.SelectItem{{Expr: queryir.WholeRow{Entity: orders}}},
		Explicit: true,
	}
	_, err = id.InQuery(rows)
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestCompare_CompositeOperand(t *testing.T) {
	users := queryir.Table{Name: "users", Alias: "u", Columns: []queryir.ColumnDef{
		{Name: "id", Type: datatype.Int{}},
	}}

	_, err := id.Equals(queryir.WholeRow{Entity: users})
	assert.True(t, sqlerr.IsTypeMismatch(err))

	_, err = id.In(queryir.WholeRow{Entity: users, Optional: true})
	assert.True(t, sqlerr.IsTypeMismatch(err))

	_, err = Of(queryir.WholeRow{Entity: users}).Equals(id)
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestZeroExpr(t *testing.T) {
	var zero Expr
	calls := map[string]func() (Expr, error){
		"equals":   func() (Expr, error) { return zero.Equals(1) },
		"like":     func() (Expr, error) { return zero.Like("a%") },
		"and":      func() (Expr, error) { return zero.And(true) },
		"not":      zero.Not,
		"is null":  zero.IsNull,
		"in":       func() (Expr, error) { return zero.In(1, 2) },
		"in query": func() (Expr, error) { return zero.InQuery(&queryir.Select{}) },
		"json":     func() (Expr, error) { return zero.AccessJSON(Keys("a")) },
		"sum":      func() (Expr, error) { return Sum(zero) },
		"max":      func() (Expr, error) { return Max(zero) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			_, err := call()
			require.Error(t, err)
			assert.True(t, sqlerr.IsInvalidDefinition(err))
		})
	}
}

func TestAccessJSON(t *testing.T) {
	city, err := profile.AccessJSONText(Keys("address", "city"))
	require.NoError(t, err)
	sql, _ := compile(t, city)
	assert.Equal(t, `"u"."profile"->'address'->>'city'`, sql)
	assert.True(t, datatype.Equal(datatype.MakeNullable(datatype.Varchar{}), city.DataType()))

	cond, err := city.Equals("Lisbon")
	require.NoError(t, err)
	sql, _ = compile(t, cond)
	assert.Equal(t, `"u"."profile"->'address'->>'city' = $1`, sql)

	first, err := profile.AccessJSON(Keys("tags").Index(0))
	require.NoError(t, err)
	sql, _ = compile(t, first)
	assert.Equal(t, `"u"."profile"->'tags'->0`, sql)

	chained, err := Must(profile.AccessJSON(Keys("address"))).AccessJSONText(Keys("zip"))
	require.NoError(t, err)
	sql, _ = compile(t, chained)
	assert.Equal(t, `"u"."profile"->'address'->>'zip'`, sql)

	_, err = status.AccessJSON(Keys("a"))
	assert.True(t, sqlerr.IsTypeMismatch(err))

	_, err = profile.AccessJSON(nil)
	assert.Error(t, err)
}

func TestPath_ExtendDoesNotAlias(t *testing.T) {
	base := Keys("a")
	left := base.Key("b")
	right := base.Key("c")
	assert.Equal(t, "b", left[1].Key)
	assert.Equal(t, "c", right[1].Key)
	assert.Len(t, base, 1)
}

func TestAggregates(t *testing.T) {
	assert.True(t, datatype.Equal(datatype.Int{}, CountAll().DataType()))
	assert.True(t, CountAll().Node().IsAggregate())

	sum, err := Sum(score)
	require.NoError(t, err)
	sql, _ := compile(t, sum)
	assert.Equal(t, `SUM("u"."score")`, sql)
	assert.Empty(t, sum.Node().ColumnRefs())

	_, err = Sum(status)
	assert.True(t, sqlerr.IsTypeMismatch(err))
	_, err = Max(profile)
	assert.True(t, sqlerr.IsTypeMismatch(err))

	sql, _ = compile(t, CountDistinct(status))
	assert.Equal(t, `COUNT(DISTINCT "t"."status")`, sql)
}

func TestIf(t *testing.T) {
	cond := Must(score.GreaterThan(10))
	label, err := If(cond, "big", "small")
	require.NoError(t, err)
	assert.True(t, datatype.Equal(datatype.Varchar{}, label.DataType()))

	sql, params := compile(t, label)
	assert.Equal(t, `CASE WHEN "u"."score" > $1 THEN $2 ELSE $3 END`, sql)
	assert.Equal(t, []any{10.0, "big", "small"}, params)

	nullable, err := If(cond, status, nil)
	require.NoError(t, err)
	assert.True(t, datatype.IsNullable(nullable.DataType()))

	_, err = If(cond, "a", 1)
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))

	_, err = If(status, 1, 2)
	assert.True(t, sqlerr.IsTypeMismatch(err))
}

func TestBracketAndAlias(t *testing.T) {
	either := Must(Must(id.Equals(1)).Or(Must(id.Equals(2))))
	cond, err := either.Bracket().And(Must(status.Equals("a")))
	require.NoError(t, err)
	sql, _ := compile(t, cond)
	assert.Equal(t, `(("u"."id" = $1) OR ("u"."id" = $2)) AND ("t"."status" = $3)`, sql)

	item := status.As("state")
	assert.Equal(t, "state", item.OutputName())
	assert.Equal(t, "status", status.Item().OutputName())
}

func TestValue_Infers(t *testing.T) {
	v, err := Value([]int{1, 2})
	require.NoError(t, err)
	assert.True(t, datatype.Equal(datatype.Array{Elem: datatype.Int{}}, v.DataType()))

	_, err = Value(struct{}{})
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))

	_, err = Value(nil)
	assert.True(t, sqlerr.IsUnsupportedCoercion(err))
}

func TestMust_Panics(t *testing.T) {
	assert.Panics(t, func() { Must(status.Equals(1)) })
}
