package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/datatype"
)

func TestValidate_SimpleSelect(t *testing.T) {
	q := &Select{
		From:  users,
		Where: Comparator{Op: OpEq, Left: col(users, "status"), Right: Constant{Value: "active", Type: datatype.Varchar{}}},
	}

	result := Validate(q)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidate_UnknownAlias(t *testing.T) {
	q := &Select{
		From:     users,
		GroupBy:  []Expression{col(orders, "user_id")},
		Items:    []SelectItem{{Expr: Aggregate{Func: AggCount}}},
		Explicit: true,
	}

	result := Validate(q)
	require.False(t, result.Valid)
	assert.Equal(t, "o", result.Problems[0].Alias)
	assert.Contains(t, result.Problems[0].Message, "group by")
}

func TestValidate_UnknownColumn(t *testing.T) {
	q := &Select{
		From:  users,
		Where: NullTest{Operand: ColumnRef{Table: "u", Column: "missing", Type: datatype.MakeNullable(datatype.Int{})}},
	}

	result := Validate(q)
	require.False(t, result.Valid)
	assert.Equal(t, "missing", result.Problems[0].Column)
}

func TestValidate_DuplicateAlias(t *testing.T) {
	q := &Select{From: users, Joins: []Join{{Kind: JoinInner, Entity: orders.As("u"), On: Constant{Value: true, Type: datatype.Boolean{}}}}}

	result := Validate(q)
	assert.False(t, result.Valid)
}

func TestValidate_Grouping(t *testing.T) {
	tests := []struct {
		name  string
		q     *Select
		valid bool
	}{
		{
			name: "grouped column and aggregate",
			q: &Select{
				From:     orders,
				GroupBy:  []Expression{col(orders, "user_id")},
				Items:    []SelectItem{{Expr: col(orders, "user_id")}, {Expr: Aggregate{Func: AggSum, Arg: col(orders, "total")}}},
				Explicit: true,
			},
			valid: true,
		},
		{
			name: "ungrouped column",
			q: &Select{
				From:     orders,
				GroupBy:  []Expression{col(orders, "user_id")},
				Items:    []SelectItem{{Expr: col(orders, "id")}},
				Explicit: true,
			},
			valid: false,
		},
		{
			name: "aggregate without group by mixed with column",
			q: &Select{
				From:     orders,
				Items:    []SelectItem{{Expr: col(orders, "id")}, {Expr: Aggregate{Func: AggCount}}},
				Explicit: true,
			},
			valid: false,
		},
		{
			name: "group by with implicit select",
			q: &Select{
				From:    orders,
				GroupBy: []Expression{col(orders, "user_id")},
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, Validate(tt.q).Valid)
		})
	}
}

func TestValidate_OrderByAlias(t *testing.T) {
	q := &Select{
		From:     users,
		Items:    []SelectItem{{Expr: col(users, "status"), Alias: "s"}},
		Explicit: true,
		OrderBy:  []OrderItem{{Alias: "s"}},
	}
	assert.True(t, Validate(q).Valid)

	q.OrderBy = []OrderItem{{Alias: "nope"}}
	assert.False(t, Validate(q).Valid)
}

func TestValidate_CorrelatedSubquery(t *testing.T) {
	sub := &Select{
		From:     orders,
		Where:    Comparator{Op: OpEq, Left: col(orders, "user_id"), Right: col(users, "id")},
		Items:    []SelectItem{{Expr: col(orders, "user_id")}},
		Explicit: true,
	}
	q := &Select{
		From:  users,
		Where: InSubquery{Left: col(users, "id"), Query: sub},
	}

	assert.True(t, Validate(q).Valid)

	// The same sub-query on its own cannot see "u".
	assert.False(t, Validate(sub).Valid)
}
