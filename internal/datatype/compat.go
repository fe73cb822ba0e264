package datatype

import (
	"fmt"
	"strings"

	"github.com/roach88/typesql/internal/sqlerr"
)

// comparableWith lists, per scalar domain, the domains it may be compared with.
// The relation used by CanCompare is the symmetric closure of this table,
// so boolean~float holds (declared by boolean) while boolean~timestamp does
// not (declared by neither).
var comparableWith = map[Type][]Type{
	Varchar{}:   {Varchar{}},
	Int{}:       {Int{}, Float{}, Boolean{}, Timestamp{}},
	Float{}:     {Float{}, Int{}},
	Boolean{}:   {Boolean{}, Int{}, Float{}},
	Timestamp{}: {Timestamp{}, Int{}},
}

// CanCompare reports whether values of the two domains may be compared.
// Nullability is ignored. Composite domains compare only with a
// structurally compatible domain of the same shape.
func CanCompare(a, b Type) bool {
	a, b = NonNullable(a), NonNullable(b)
	switch x := a.(type) {
	case JSON:
		_, ok := b.(JSON)
		return ok
	case Array:
		y, ok := b.(Array)
		return ok && CanCompare(x.Elem, y.Elem)
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !CanCompare(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case Row, Null, Void, Union:
		return false
	}
	if !isScalar(b) {
		return false
	}
	return declares(a, b) || declares(b, a)
}

func isScalar(t Type) bool {
	switch t.(type) {
	case Varchar, Int, Float, Boolean, Timestamp:
		return true
	}
	return false
}

func declares(a, b Type) bool {
	for _, t := range comparableWith[a] {
		if t == b {
			return true
		}
	}
	return false
}

// IsBoolean reports whether t is boolean, ignoring nullability.
func IsBoolean(t Type) bool {
	_, ok := NonNullable(t).(Boolean)
	return ok
}

// IsText reports whether t is varchar, ignoring nullability.
func IsText(t Type) bool {
	_, ok := NonNullable(t).(Varchar)
	return ok
}

// IsJSON reports whether t is json, ignoring nullability.
func IsJSON(t Type) bool {
	_, ok := NonNullable(t).(JSON)
	return ok
}

// IsNumeric reports whether t is int or float, ignoring nullability.
func IsNumeric(t Type) bool {
	switch NonNullable(t).(type) {
	case Int, Float:
		return true
	}
	return false
}

// SQLName returns the Postgres type name used in casts, e.g. "VARCHAR" or
// "INTEGER[]".
func SQLName(t Type) (string, error) {
	switch x := NonNullable(t).(type) {
	case Varchar:
		return "VARCHAR", nil
	case Int:
		return "INTEGER", nil
	case Float:
		return "FLOAT", nil
	case Boolean:
		return "BOOLEAN", nil
	case Timestamp:
		return "TIMESTAMP", nil
	case JSON:
		return "JSONB", nil
	case Array:
		elem, err := SQLName(x.Elem)
		if err != nil {
			return "", err
		}
		return elem + "[]", nil
	default:
		return "", fmt.Errorf("domain %s has no SQL type name", t)
	}
}

// Parse reads the declaration syntax used by schema files:
// varchar, int, float, boolean, timestamp, json; a "[]" suffix for arrays
// and a trailing "?" for nullable domains, e.g. "varchar[]?".
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "?") {
		inner, err := Parse(strings.TrimSuffix(s, "?"))
		if err != nil {
			return nil, err
		}
		return MakeNullable(inner), nil
	}
	if strings.HasSuffix(s, "[]") {
		elem, err := Parse(strings.TrimSuffix(s, "[]"))
		if err != nil {
			return nil, err
		}
		return Array{Elem: elem}, nil
	}
	switch strings.ToLower(s) {
	case "varchar", "text", "string":
		return Varchar{}, nil
	case "int", "integer", "bigint":
		return Int{}, nil
	case "float", "double", "real":
		return Float{}, nil
	case "boolean", "bool":
		return Boolean{}, nil
	case "timestamp", "timestamptz":
		return Timestamp{}, nil
	case "json", "jsonb":
		return JSON{}, nil
	}
	return nil, fmt.Errorf("unknown data type %q", s)
}

func mismatch(op string, a, b Type) error {
	return sqlerr.NewTypeMismatch(op, a, b)
}
