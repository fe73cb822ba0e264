package schema

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/typesql/internal/expr"
)

// parseCondition reads a #Condition. Values keep their CUE kind: integers
// become int64, other numbers float64.
func parseCondition(v cue.Value) (expr.Condition, error) {
	var c expr.Condition
	var err error

	if c.Column, _, err = optionalString(v, "column"); err != nil {
		return c, err
	}
	if c.Op, _, err = optionalString(v, "op"); err != nil {
		return c, err
	}
	if c.Ref, _, err = optionalString(v, "ref"); err != nil {
		return c, err
	}
	if c.Is, _, err = optionalString(v, "is"); err != nil {
		return c, err
	}
	if pathVal := v.LookupPath(cue.ParsePath("path")); pathVal.Exists() {
		if err := pathVal.Decode(&c.Path); err != nil {
			return c, formatCUEError(err)
		}
	}
	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		if c.Value, err = goValue(valueVal); err != nil {
			return c, err
		}
	}
	if c.Any, err = parseConditions(v, "any"); err != nil {
		return c, err
	}
	if c.All, err = parseConditions(v, "all"); err != nil {
		return c, err
	}
	return c, nil
}

func parseConditions(v cue.Value, field string) ([]expr.Condition, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []expr.Condition
	for iter.Next() {
		c, err := parseCondition(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// goValue converts a concrete CUE value to the Go form decoded documents
// use: nil, bool, int64, float64, string, []any or map[string]any.
func goValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := goValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			field, err := goValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = field
		}
		return out, nil
	}
	return nil, &CompileError{
		Field:   "value",
		Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
		Pos:     v.Pos(),
	}
}
