package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// Value builds a constant from a bare Go value, inferring its domain.
func Value(v any) (Expr, error) {
	t, err := Infer(v)
	if err != nil {
		return Expr{}, err
	}
	node, err := Coerce(v, t)
	if err != nil {
		return Expr{}, err
	}
	return Expr{node: node}, nil
}

// Typed builds a constant of domain t from v.
func Typed(v any, t datatype.Type) (Expr, error) {
	node, err := Coerce(v, t)
	if err != nil {
		return Expr{}, err
	}
	return Expr{node: node}, nil
}

// Infer returns the domain a bare Go value naturally belongs to.
func Infer(v any) (datatype.Type, error) {
	switch v.(type) {
	case string, uuid.UUID:
		return datatype.Varchar{}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return datatype.Int{}, nil
	case float32, float64:
		return datatype.Float{}, nil
	case bool:
		return datatype.Boolean{}, nil
	case time.Time:
		return datatype.Timestamp{}, nil
	case json.RawMessage, map[string]any:
		return datatype.JSON{}, nil
	case nil:
		return nil, sqlerr.NewUnsupportedCoercion(v, datatype.Null{}, "nil has no domain; use IsNull")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, sqlerr.NewUnsupportedCoercion(v, datatype.Void{}, "cannot infer the element domain of an empty array")
		}
		elem, err := Infer(rv.Index(0).Interface())
		if err != nil {
			return nil, err
		}
		return datatype.Array{Elem: elem}, nil
	}
	return nil, sqlerr.NewUnsupportedCoercion(v, datatype.Void{}, "no domain for this Go type")
}

// Coerce builds a constant node of domain target (nullability stripped)
// from v. It fails with UNSUPPORTED_CONSTANT_COERCION when the runtime
// shape of v does not fit the domain. Integers are normalized to int64 and
// floats to float64; uuid.UUID is accepted for varchar.
func Coerce(v any, target datatype.Type) (queryir.Expression, error) {
	target = datatype.NonNullable(target)
	if v == nil {
		return nil, sqlerr.NewUnsupportedCoercion(v, target, "nil is not a value; use IsNull")
	}

	switch t := target.(type) {
	case datatype.Varchar:
		switch x := v.(type) {
		case string:
			return queryir.Constant{Value: x, Type: t}, nil
		case uuid.UUID:
			return queryir.Constant{Value: x.String(), Type: t}, nil
		}
		return nil, sqlerr.NewUnsupportedCoercion(v, target, "expected a string")

	case datatype.Int:
		n, ok := toInt64(v)
		if !ok {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, "expected an integer")
		}
		return queryir.Constant{Value: n, Type: t}, nil

	case datatype.Float:
		f, ok := toFloat64(v)
		if !ok {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, "expected a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, "not a finite number")
		}
		return queryir.Constant{Value: f, Type: t}, nil

	case datatype.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, "expected a bool")
		}
		return queryir.Constant{Value: b, Type: t}, nil

	case datatype.Timestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, "expected a time.Time")
		}
		return queryir.Constant{Value: ts, Type: t}, nil

	case datatype.JSON:
		if _, err := json.Marshal(v); err != nil {
			return nil, sqlerr.NewUnsupportedCoercion(v, target, err.Error())
		}
		return queryir.Constant{Value: v, Type: t}, nil

	case datatype.Array:
		return coerceArray(v, t)
	}
	return nil, sqlerr.NewUnsupportedCoercion(v, target, "domain has no constant form")
}

func coerceArray(v any, t datatype.Array) (queryir.Expression, error) {
	switch datatype.NonNullable(t.Elem).(type) {
	case datatype.Row, datatype.Tuple, datatype.Void, datatype.Null:
		return nil, sqlerr.NewUnsupportedCoercion(v, t, "unsupported array element domain")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, sqlerr.NewUnsupportedCoercion(v, t, "expected a slice")
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, sqlerr.NewUnsupportedCoercion(v, t, "[]byte is not an array value")
	}

	elems := make([]queryir.Expression, rv.Len())
	for i := range elems {
		elem, err := Coerce(rv.Index(i).Interface(), t.Elem)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		elems[i] = elem
	}
	return queryir.ArrayConstant{Elems: elems, Type: t}, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
