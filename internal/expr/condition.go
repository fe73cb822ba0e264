package expr

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/sqlerr"
)

// Condition is the declarative form of a predicate, as written in schema
// and scenario files:
//
//	{column: "u.status", op: "=", value: "active"}
//	{column: "o.user_id", op: "=", ref: "u.id"}
//	{column: "u.deleted_at", is: "null"}
//	{column: "u.profile", path: ["theme"], op: "=", value: "dark"}
//	{any: [{...}, {...}]}
//
// Exactly one of Any, All, Is, Ref or Value gives the shape of a
// condition.
type Condition struct {
	Column string      `json:"column,omitempty" yaml:"column,omitempty"`
	Path   []string    `json:"path,omitempty" yaml:"path,omitempty"`
	Op     string      `json:"op,omitempty" yaml:"op,omitempty"`
	Value  any         `json:"value,omitempty" yaml:"value,omitempty"`
	Ref    string      `json:"ref,omitempty" yaml:"ref,omitempty"`
	Is     string      `json:"is,omitempty" yaml:"is,omitempty"`
	Any    []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	All    []Condition `json:"all,omitempty" yaml:"all,omitempty"`
}

// Resolver looks up a column by the name a Condition uses for it.
type Resolver func(column string) (Expr, error)

// Build turns c into a boolean expression, resolving column names through
// resolve.
func (c Condition) Build(resolve Resolver) (Expr, error) {
	switch {
	case len(c.Any) > 0:
		return fold(c.Any, resolve, Expr.Or)
	case len(c.All) > 0:
		return fold(c.All, resolve, Expr.And)
	}

	if c.Column == "" {
		return Expr{}, sqlerr.NewInvalidDefinition("condition needs a column, any or all")
	}
	left, err := c.operand(resolve)
	if err != nil {
		return Expr{}, err
	}

	if c.Is != "" {
		switch strings.ToLower(strings.ReplaceAll(c.Is, " ", "_")) {
		case "null":
			return left.IsNull()
		case "not_null":
			return left.IsNotNull()
		}
		return Expr{}, sqlerr.NewInvalidDefinition("condition on %s: is must be null or not_null, got %q", c.Column, c.Is)
	}

	var right any
	if c.Ref != "" {
		ref, err := resolve(c.Ref)
		if err != nil {
			return Expr{}, err
		}
		right = ref
	} else {
		if c.Value == nil {
			return Expr{}, sqlerr.NewInvalidDefinition("condition on %s needs a value, ref or is", c.Column)
		}
		right = c.Value
	}

	op := strings.ToLower(strings.TrimSpace(c.Op))
	switch op {
	case "in", "not in", "not_in":
		list, ok := c.Value.([]any)
		if !ok {
			return Expr{}, sqlerr.NewInvalidDefinition("condition on %s: %s needs a list value", c.Column, op)
		}
		items := slices.Clone(list)
		for i, item := range items {
			if items[i], err = literal(item, left.DataType()); err != nil {
				return Expr{}, err
			}
		}
		if op == "in" {
			return left.In(items...)
		}
		return left.NotIn(items...)
	}

	if c.Ref == "" {
		if right, err = literal(right, left.DataType()); err != nil {
			return Expr{}, err
		}
	}
	switch op {
	case "=", "==", "eq", "":
		return left.Equals(right)
	case "!=", "<>", "ne":
		return left.NotEquals(right)
	case "<", "lt":
		return left.LessThan(right)
	case "<=", "le":
		return left.LessThanOrEqual(right)
	case ">", "gt":
		return left.GreaterThan(right)
	case ">=", "ge":
		return left.GreaterThanOrEqual(right)
	case "like":
		return left.Like(right)
	}
	return Expr{}, sqlerr.NewInvalidDefinition("condition on %s: unknown operator %q", c.Column, c.Op)
}

func (c Condition) operand(resolve Resolver) (Expr, error) {
	col, err := resolve(c.Column)
	if err != nil {
		return Expr{}, err
	}
	if len(c.Path) == 0 {
		return col, nil
	}
	// a path ending in a comparison with text reads the leaf as text
	if _, isText := c.Value.(string); isText || c.Op == "like" {
		return col.AccessJSONText(Keys(c.Path...))
	}
	return col.AccessJSON(Keys(c.Path...))
}

func fold(conds []Condition, resolve Resolver, combine func(Expr, any) (Expr, error)) (Expr, error) {
	var out Expr
	for i, sub := range conds {
		e, err := sub.Build(resolve)
		if err != nil {
			return Expr{}, fmt.Errorf("condition %d: %w", i, err)
		}
		if out.IsZero() {
			out = e
			continue
		}
		if out, err = combine(out, e); err != nil {
			return Expr{}, err
		}
	}
	return out, nil
}

// literal adapts a decoded document value to domain t. Documents carry
// timestamps as strings and numbers as the widest Go type.
func literal(v any, t datatype.Type) (any, error) {
	s, isString := v.(string)
	if !isString {
		return v, nil
	}
	if _, isTime := datatype.NonNullable(t).(datatype.Timestamp); !isTime {
		return v, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return nil, sqlerr.NewUnsupportedCoercion(v, t, "timestamp must be RFC 3339 or YYYY-MM-DD")
}
