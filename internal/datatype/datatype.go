// Package datatype models the domain of SQL values.
//
// A domain is one of a closed set of descriptors: varchar, int, float,
// boolean, timestamp, json, array<T>, tuple<T...>, row<{name:T}...>, null,
// void, and union<T...>. Type is a sealed interface so consumers can switch
// over it exhaustively.
//
// Nullability is not a flag. A nullable domain is a Union whose members
// include Null. Unions are always normalized: nested unions are flattened,
// structurally equal members are deduplicated, and a union that would hold
// a single member collapses to that member. Use the constructors in this
// package (NewUnion, MakeNullable, Merge) rather than building Union
// literals by hand.
package datatype

import (
	"fmt"
	"strings"
)

// Type is a SQL value domain.
//
// This is a sealed interface - only types in this package implement it.
type Type interface {
	fmt.Stringer
	dataType()
}

// Varchar is the text domain.
type Varchar struct{}

// Int is the integer domain.
type Int struct{}

// Float is the floating point domain.
type Float struct{}

// Boolean is the boolean domain.
type Boolean struct{}

// Timestamp is the date-time domain.
type Timestamp struct{}

// JSON is the domain of JSON documents.
type JSON struct{}

// Null is the domain holding only SQL NULL.
type Null struct{}

// Void is the domain of expressions that produce no value.
type Void struct{}

// Array is a homogeneous array domain.
type Array struct {
	Elem Type
}

// Tuple is a fixed-arity positional domain.
type Tuple struct {
	Elems []Type
}

// Field is a named member of a Row domain.
type Field struct {
	Name string
	Type Type
}

// Row is the domain of a record with named fields, e.g. a whole table row.
type Row struct {
	Fields []Field
}

// Union is a normalized set of member domains. In practice it only ever
// represents "T or null".
type Union struct {
	Members []Type
}

func (Varchar) dataType()   {}
func (Int) dataType()       {}
func (Float) dataType()     {}
func (Boolean) dataType()   {}
func (Timestamp) dataType() {}
func (JSON) dataType()      {}
func (Null) dataType()      {}
func (Void) dataType()      {}
func (Array) dataType()     {}
func (Tuple) dataType()     {}
func (Row) dataType()       {}
func (Union) dataType()     {}

func (Varchar) String() string   { return "varchar" }
func (Int) String() string       { return "int" }
func (Float) String() string     { return "float" }
func (Boolean) String() string   { return "boolean" }
func (Timestamp) String() string { return "timestamp" }
func (JSON) String() string      { return "json" }
func (Null) String() string      { return "null" }
func (Void) String() string      { return "void" }

func (a Array) String() string { return "array<" + a.Elem.String() + ">" }

func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "tuple<" + strings.Join(parts, ", ") + ">"
}

func (r Row) String() string {
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	return "row<{" + strings.Join(parts, ", ") + "}>"
}

func (u Union) String() string {
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.String()
	}
	return "union<" + strings.Join(parts, ", ") + ">"
}

// Equal reports whether two domains are structurally equal.
// Union membership is compared as a set.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Array:
		y, ok := b.(Array)
		return ok && Equal(x.Elem, y.Elem)
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case Row:
		y, ok := b.(Row)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Equal(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		return true
	case Union:
		y, ok := b.(Union)
		if !ok || len(x.Members) != len(y.Members) {
			return false
		}
		for _, m := range x.Members {
			if !contains(y.Members, m) {
				return false
			}
		}
		return true
	default:
		// Scalar domains are empty structs; identity of the concrete type is equality.
		return a == b
	}
}

// Members returns the flattened member domains of t. A non-union domain is
// its own single member.
func Members(t Type) []Type {
	if u, ok := t.(Union); ok {
		var out []Type
		for _, m := range u.Members {
			out = append(out, Members(m)...)
		}
		return out
	}
	return []Type{t}
}

// NewUnion builds a normalized union of the given domains.
func NewUnion(ts ...Type) Type {
	var members []Type
	for _, t := range ts {
		for _, m := range Members(t) {
			if !contains(members, m) {
				members = append(members, m)
			}
		}
	}
	switch len(members) {
	case 0:
		return Void{}
	case 1:
		return members[0]
	default:
		return Union{Members: members}
	}
}

// MakeNullable returns the union of t and null. It is idempotent.
func MakeNullable(t Type) Type {
	return NewUnion(t, Null{})
}

// IsNullable reports whether t admits NULL.
func IsNullable(t Type) bool {
	return contains(Members(t), Null{})
}

// NonNullable strips null from t. The null domain itself is returned
// unchanged because there is nothing left to strip it down to.
func NonNullable(t Type) Type {
	var rest []Type
	for _, m := range Members(t) {
		if _, isNull := m.(Null); !isNull {
			rest = append(rest, m)
		}
	}
	if len(rest) == 0 {
		return Null{}
	}
	return NewUnion(rest...)
}

// Merge unions two domains. Apart from null, both sides must describe the
// same domain; anything else is a TYPE_MISMATCH.
func Merge(a, b Type) (Type, error) {
	na, nb := NonNullable(a), NonNullable(b)
	_, aNull := na.(Null)
	_, bNull := nb.(Null)
	if !aNull && !bNull && !Equal(na, nb) {
		return nil, mismatch("merge", a, b)
	}
	return NewUnion(a, b), nil
}

func contains(ts []Type, t Type) bool {
	for _, x := range ts {
		if Equal(x, t) {
			return true
		}
	}
	return false
}
