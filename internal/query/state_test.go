package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/typesql/internal/sqlerr"
)

func TestState_Allows(t *testing.T) {
	testCases := []struct {
		state   State
		clause  Clause
		allowed bool
	}{
		{0, ClauseJoin, true},
		{HasOrderBy, ClauseJoin, true},
		{HasWhere, ClauseJoin, false},
		{HasGroupBy, ClauseJoin, false},
		{HasLimit, ClauseJoin, false},
		{HasExplicitSelect, ClauseJoin, false},
		{0, ClauseWhere, true},
		{HasWhere, ClauseWhere, false},
		{HasWhere, ClauseAndOr, true},
		{HasLimit | HasExplicitSelect, ClauseAndOr, true},
		{HasWhere | HasOrderBy, ClauseGroupBy, true},
		{HasLimit, ClauseGroupBy, false},
		{HasExplicitSelect, ClauseGroupBy, false},
		{HasGroupBy, ClauseGroupBy, false},
		{HasExplicitSelect, ClauseOrderBy, true},
		{HasLimit, ClauseOrderBy, false},
		{0, ClauseOrderByAlias, false},
		{HasExplicitSelect, ClauseOrderByAlias, true},
		{HasGroupBy, ClauseSelect, true},
		{HasExplicitSelect, ClauseSelect, false},
		{HasLimit, ClauseSelect, false},
		{HasGroupBy | HasOrderBy, ClauseLimit, true},
		{HasLimit, ClauseLimit, false},
	}

	for _, tc := range testCases {
		t.Run(tc.clause.String()+" in "+tc.state.String(), func(t *testing.T) {
			err := tc.state.Allows(tc.clause)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, sqlerr.IsIllegalClauseOrder(err), "got %v", err)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", State(0).String())
	assert.Equal(t, "where|limit", (HasWhere | HasLimit).String())
}
