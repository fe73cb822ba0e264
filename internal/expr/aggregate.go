package expr

import (
	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// CountAll builds COUNT(*).
func CountAll() Expr {
	return Expr{node: queryir.Aggregate{Func: queryir.AggCount}}
}

// Count builds COUNT(e).
func Count(e Expr) Expr {
	return Expr{node: queryir.Aggregate{Func: queryir.AggCount, Arg: e.node}}
}

// CountDistinct builds COUNT(DISTINCT e).
func CountDistinct(e Expr) Expr {
	return Expr{node: queryir.Aggregate{Func: queryir.AggCount, Arg: e.node, Distinct: true}}
}

// Sum builds SUM(e). e must be numeric.
func Sum(e Expr) (Expr, error) { return numericAggregate(queryir.AggSum, e) }

// Avg builds AVG(e). e must be numeric.
func Avg(e Expr) (Expr, error) { return numericAggregate(queryir.AggAvg, e) }

// Min builds MIN(e).
func Min(e Expr) (Expr, error) { return orderedAggregate(queryir.AggMin, e) }

// Max builds MAX(e).
func Max(e Expr) (Expr, error) { return orderedAggregate(queryir.AggMax, e) }

func numericAggregate(fn queryir.AggregateFunc, e Expr) (Expr, error) {
	if err := e.check(string(fn)); err != nil {
		return Expr{}, err
	}
	if !datatype.IsNumeric(e.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch(string(fn), e.DataType(), datatype.Float{})
	}
	return Expr{node: queryir.Aggregate{Func: fn, Arg: e.node}}, nil
}

func orderedAggregate(fn queryir.AggregateFunc, e Expr) (Expr, error) {
	if err := e.check(string(fn)); err != nil {
		return Expr{}, err
	}
	switch datatype.NonNullable(e.DataType()).(type) {
	case datatype.Varchar, datatype.Int, datatype.Float, datatype.Timestamp:
		return Expr{node: queryir.Aggregate{Func: fn, Arg: e.node}}, nil
	}
	return Expr{}, sqlerr.NewTypeMismatch(string(fn), e.DataType(), e.DataType())
}
