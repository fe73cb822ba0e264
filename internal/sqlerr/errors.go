// Package sqlerr defines the typed errors raised while building and
// compiling queries.
//
// Construction and compilation failures are always returned as *Error so
// callers can branch on Code with errors.As, even through wrapping.
// Verification outcomes are never errors; see package narrow.
package sqlerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes a build or compile failure.
type Code string

const (
	// CodeTypeMismatch indicates two domains were combined in a comparator,
	// logical operator or union merge that does not accept them.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeUnsupportedCoercion indicates a Go value could not become a
	// constant of the requested domain.
	CodeUnsupportedCoercion Code = "UNSUPPORTED_CONSTANT_COERCION"

	// CodeIllegalClauseOrder indicates a query clause was added in a state
	// that does not permit it.
	CodeIllegalClauseOrder Code = "ILLEGAL_CLAUSE_ORDER"

	// CodeUnsupportedNode indicates a node kind reached a compiler or
	// evaluator that has no case for it. Always a defect.
	CodeUnsupportedNode Code = "UNSUPPORTED_NODE"

	// CodeUnresolvedReference indicates a column or alias that cannot be
	// resolved against the entities of a query.
	CodeUnresolvedReference Code = "UNRESOLVED_REFERENCE"

	// CodeInvalidDefinition indicates a malformed index or table definition.
	CodeInvalidDefinition Code = "INVALID_DEFINITION"
)

// Error is a construction or compilation failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries the offending values (domains, aliases, clause names).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTypeMismatch returns true if err is a TYPE_MISMATCH error.
func IsTypeMismatch(err error) bool { return Is(err, CodeTypeMismatch) }

// IsUnsupportedCoercion returns true if err is an UNSUPPORTED_CONSTANT_COERCION error.
func IsUnsupportedCoercion(err error) bool { return Is(err, CodeUnsupportedCoercion) }

// IsIllegalClauseOrder returns true if err is an ILLEGAL_CLAUSE_ORDER error.
func IsIllegalClauseOrder(err error) bool { return Is(err, CodeIllegalClauseOrder) }

// IsUnsupportedNode returns true if err is an UNSUPPORTED_NODE error.
func IsUnsupportedNode(err error) bool { return Is(err, CodeUnsupportedNode) }

// IsUnresolvedReference returns true if err is an UNRESOLVED_REFERENCE error.
func IsUnresolvedReference(err error) bool { return Is(err, CodeUnresolvedReference) }

// IsInvalidDefinition returns true if err is an INVALID_DEFINITION error.
func IsInvalidDefinition(err error) bool { return Is(err, CodeInvalidDefinition) }

// NewTypeMismatch creates an error for two incompatible domains.
func NewTypeMismatch(op string, left, right fmt.Stringer) *Error {
	return &Error{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("%s cannot combine %s with %s", op, left, right),
		Details: map[string]string{
			"left":  left.String(),
			"right": right.String(),
		},
	}
}

// NewUnsupportedCoercion creates an error for a value that does not fit a domain.
func NewUnsupportedCoercion(value any, target fmt.Stringer, reason string) *Error {
	return &Error{
		Code:    CodeUnsupportedCoercion,
		Message: fmt.Sprintf("cannot coerce %T to %s: %s", value, target, reason),
		Details: map[string]string{
			"value_type": fmt.Sprintf("%T", value),
			"target":     target.String(),
		},
	}
}

// NewIllegalClauseOrder creates an error for a protocol violation.
func NewIllegalClauseOrder(clause, reason string) *Error {
	return &Error{
		Code:    CodeIllegalClauseOrder,
		Message: fmt.Sprintf("%s is not allowed: %s", clause, reason),
		Details: map[string]string{"clause": clause},
	}
}

// NewUnsupportedNode creates an error for a node kind without a handler.
func NewUnsupportedNode(where string, node any) *Error {
	return &Error{
		Code:    CodeUnsupportedNode,
		Message: fmt.Sprintf("%s has no case for node %T", where, node),
		Details: map[string]string{"node": fmt.Sprintf("%T", node)},
	}
}

// NewUnresolved creates an error for an unknown alias or column.
func NewUnresolved(alias, column, context string) *Error {
	name := alias
	if column != "" {
		name = alias + "." + column
	}
	return &Error{
		Code:    CodeUnresolvedReference,
		Message: fmt.Sprintf("cannot resolve %q in %s", name, context),
		Details: map[string]string{"alias": alias, "column": column},
	}
}

// NewInvalidDefinition creates an error for a malformed definition.
func NewInvalidDefinition(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidDefinition,
		Message: fmt.Sprintf(format, args...),
	}
}
