package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/datatype"
)

var users = Table{
	Name:  "users",
	Alias: "u",
	Columns: []ColumnDef{
		{Name: "id", Type: datatype.Int{}},
		{Name: "status", Type: datatype.Varchar{}},
		{Name: "deleted_at", Type: datatype.MakeNullable(datatype.Timestamp{})},
		{Name: "profile", Type: datatype.JSON{}},
	},
}

var orders = Table{
	Name:  "orders",
	Alias: "o",
	Columns: []ColumnDef{
		{Name: "id", Type: datatype.Int{}},
		{Name: "user_id", Type: datatype.Int{}},
		{Name: "total", Type: datatype.Float{}},
	},
}

func col(t Table, name string) ColumnRef {
	c, _ := t.Column(name)
	return ColumnRef{Table: t.Ref(), Column: name, Type: c.Type}
}

func TestTags(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{col(users, "id"), "table_column/column/reference"},
		{Constant{Value: "x", Type: datatype.Varchar{}}, "expression/constant/scalar"},
		{Constant{Value: map[string]any{}, Type: datatype.JSON{}}, "expression/constant/json"},
		{ArrayConstant{Type: datatype.Array{Elem: datatype.Int{}}}, "expression/constant/array"},
		{Comparator{Op: OpEq, Left: col(users, "id"), Right: col(orders, "user_id")}, "operator/binary/="},
		{Logical{Op: OpAnd}, "operator/binary/AND"},
		{NullTest{Operand: col(users, "deleted_at")}, "operator/right_unary/IS NULL"},
		{NullTest{Operand: col(users, "deleted_at"), Not: true}, "operator/right_unary/IS NOT NULL"},
		{Not{}, "operator/left_unary/NOT"},
		{InList{Not: true}, "operator/binary/NOT IN"},
		{JSONPath{AsText: true}, "expression/json_path/text"},
		{Bracket{}, "expression/bracket/bracket"},
		{If{}, "expression/if/case"},
		{Aggregate{Func: AggCount}, "expression/aggregate/COUNT"},
		{users, "table/table/reference"},
		{Select{}, "clause/select/select"},
		{Join{Kind: JoinLeft}, "clause/join/LEFT"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Tag().String())
		})
	}
}

func TestComparator_Metadata(t *testing.T) {
	cmp := Comparator{Op: OpEq, Left: col(users, "id"), Right: col(orders, "user_id")}

	assert.Equal(t, datatype.Boolean{}, cmp.DataType())
	assert.False(t, cmp.IsAggregate())
	assert.Equal(t, []string{"u.id", "o.user_id"}, keys(cmp.ColumnRefs()))
	assert.Empty(t, cmp.InferredAliases())

	nullable := Comparator{Op: OpLt, Left: col(users, "deleted_at"), Right: Constant{Value: 1, Type: datatype.Timestamp{}}}
	assert.True(t, datatype.IsNullable(nullable.DataType()))
}

func TestCollectRefs_Deduplicates(t *testing.T) {
	l := Logical{
		Op:    OpOr,
		Left:  Comparator{Op: OpEq, Left: col(users, "id"), Right: Constant{Value: int64(1), Type: datatype.Int{}}},
		Right: Comparator{Op: OpEq, Left: col(users, "id"), Right: Constant{Value: int64(2), Type: datatype.Int{}}},
	}
	assert.Equal(t, []string{"u.id"}, keys(l.ColumnRefs()))
}

func TestAggregate_HidesColumnRefs(t *testing.T) {
	agg := Aggregate{Func: AggSum, Arg: col(orders, "total")}

	assert.True(t, agg.IsAggregate())
	assert.Empty(t, agg.ColumnRefs())
	assert.Equal(t, []string{"sum"}, agg.InferredAliases())
	assert.True(t, datatype.Equal(datatype.MakeNullable(datatype.Float{}), agg.DataType()))

	count := Aggregate{Func: AggCount}
	assert.Equal(t, datatype.Int{}, count.DataType())
}

func TestJSONPath_InferredAliases(t *testing.T) {
	p := JSONPath{Base: col(users, "profile"), Steps: []PathStep{{Key: "address"}, {Key: "city"}}, AsText: true}
	assert.Equal(t, []string{"city"}, p.InferredAliases())
	assert.Equal(t, []string{"u.profile"}, keys(p.ColumnRefs()))

	idx := JSONPath{Base: col(users, "profile"), Steps: []PathStep{{Index: 0, IsIndex: true}}}
	assert.Empty(t, idx.InferredAliases())
}

func TestSelectItem_OutputName(t *testing.T) {
	assert.Equal(t, "status", SelectItem{Expr: col(users, "status")}.OutputName())
	assert.Equal(t, "s", SelectItem{Expr: col(users, "status"), Alias: "s"}.OutputName())
	assert.Equal(t, "u", SelectItem{Expr: WholeRow{Entity: users}}.OutputName())
	assert.Equal(t, "", SelectItem{Expr: Constant{Value: 1, Type: datatype.Int{}}}.OutputName())
}

func TestSelect_Entities(t *testing.T) {
	q := Select{From: users, Joins: []Join{{Kind: JoinLeft, Entity: orders}}}

	assert.Len(t, q.Entities(), 2)
	e, ok := q.Entity("o")
	require.True(t, ok)
	assert.Equal(t, "orders", e.Name)
	assert.True(t, q.IsLeftJoined("o"))
	assert.False(t, q.IsLeftJoined("u"))

	assert.Equal(t, map[string]string{"u": "u", "o": "o"}, q.WholeRowKeys())
}

func TestTable_RefDefaultsToName(t *testing.T) {
	assert.Equal(t, "users", Table{Name: "users"}.Ref())
	assert.Equal(t, "x", users.As("x").Ref())
	assert.Equal(t, "u", users.Ref())
}

func keys(refs []ColumnRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Key()
	}
	return out
}
