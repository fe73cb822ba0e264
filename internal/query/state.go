package query

import (
	"strings"

	"github.com/roach88/typesql/internal/sqlerr"
)

// State records which clauses a builder has set. Legality of every clause
// call is decided from State alone by Allows.
type State uint8

const (
	HasWhere State = 1 << iota
	HasGroupBy
	HasOrderBy
	HasLimit
	HasExplicitSelect
)

var stateNames = []struct {
	flag State
	name string
}{
	{HasWhere, "where"},
	{HasGroupBy, "group_by"},
	{HasOrderBy, "order_by"},
	{HasLimit, "limit"},
	{HasExplicitSelect, "explicit_select"},
}

// Has reports whether every flag in f is set.
func (s State) Has(f State) bool { return s&f == f }

// String lists the set flags, e.g. "where|limit".
func (s State) String() string {
	var names []string
	for _, n := range stateNames {
		if s.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "empty"
	}
	return strings.Join(names, "|")
}

// Clause is a clause-setting operation of the builder.
type Clause int

const (
	ClauseJoin Clause = iota
	ClauseWhere
	ClauseAndOr
	ClauseGroupBy
	ClauseOrderBy
	ClauseOrderByAlias
	ClauseSelect
	ClauseLimit
)

func (c Clause) String() string {
	switch c {
	case ClauseJoin:
		return "join"
	case ClauseWhere:
		return "where"
	case ClauseAndOr:
		return "and/or"
	case ClauseGroupBy:
		return "group_by"
	case ClauseOrderBy:
		return "order_by"
	case ClauseOrderByAlias:
		return "order_by alias"
	case ClauseSelect:
		return "select"
	case ClauseLimit:
		return "limit"
	}
	return "unknown"
}

// Allows returns an ILLEGAL_CLAUSE_ORDER error if c may not be applied in
// state s, and nil otherwise.
func (s State) Allows(c Clause) error {
	deny := func(reason string) error {
		return sqlerr.NewIllegalClauseOrder(c.String(), reason)
	}

	switch c {
	case ClauseJoin:
		for _, f := range []State{HasWhere, HasGroupBy, HasLimit, HasExplicitSelect} {
			if s.Has(f) {
				return deny("joins must precede " + f.String())
			}
		}
	case ClauseWhere:
		if s.Has(HasWhere) {
			return deny("where is already set; extend it with and/or")
		}
	case ClauseGroupBy:
		if s.Has(HasGroupBy) {
			return deny("group_by is already set")
		}
		if s.Has(HasLimit) {
			return deny("group_by must precede limit")
		}
		if s.Has(HasExplicitSelect) {
			return deny("group_by must precede an explicit select")
		}
	case ClauseOrderBy:
		if s.Has(HasLimit) {
			return deny("order_by must precede limit")
		}
	case ClauseOrderByAlias:
		if s.Has(HasLimit) {
			return deny("order_by must precede limit")
		}
		if !s.Has(HasExplicitSelect) {
			return deny("ordering by an output alias needs an explicit select")
		}
	case ClauseSelect:
		if s.Has(HasExplicitSelect) {
			return deny("select is already explicit")
		}
		if s.Has(HasLimit) {
			return deny("select must precede limit")
		}
	case ClauseLimit:
		if s.Has(HasLimit) {
			return deny("limit is already set")
		}
	}
	return nil
}
