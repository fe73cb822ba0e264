package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/narrow"
)

func sampleRows() []narrow.Row {
	return []narrow.Row{
		{"u": map[string]any{"id": int64(1), "status": "active"}, "o": map[string]any{"id": int64(10), "total": 12.5}},
		{"u": map[string]any{"id": int64(2), "status": "active"}, "o": nil},
		{"u": map[string]any{"id": int64(3), "status": "gone"}, "o": map[string]any{"id": int64(11), "total": 3.0}},
	}
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{
		"id":   int64(1),
		"name": "ada",
		"u":    map[string]any{"id": int64(1), "tags": []any{"a", "b"}},
		"o":    nil,
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"empty matches", map[string]any{}, true},
		{"scalar", map[string]any{"id": 1}, true},
		{"scalar mismatch", map[string]any{"id": 2}, false},
		{"missing key", map[string]any{"email": "x"}, false},
		{"nested subset", map[string]any{"u": map[string]any{"id": 1}}, true},
		{"nested array", map[string]any{"u": map[string]any{"tags": []any{"a", "b"}}}, true},
		{"nested mismatch", map[string]any{"u": map[string]any{"id": 9}}, false},
		{"null row", map[string]any{"o": nil}, true},
		{"object against null", map[string]any{"o": map[string]any{"id": 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchSubset(actual, tt.expected))
		})
	}
}

func TestValuesEqual(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, valuesEqual(int64(2), 2))
	assert.True(t, valuesEqual(2.0, 2))
	assert.True(t, valuesEqual(ts, "2024-03-01T10:00:00Z"))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual("2", 2))
	assert.False(t, valuesEqual(nil, 0))
}

func TestAssertRowsContain(t *testing.T) {
	rows := sampleRows()

	require.NoError(t, assertRowsContain(rows, Assertion{Row: map[string]any{"u": map[string]any{"id": 2}, "o": nil}}))

	err := assertRowsContain(rows, Assertion{Type: AssertRowsContain, Row: map[string]any{"u": map[string]any{"id": 4}}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertRowsContain, aerr.Type)
	assert.Len(t, aerr.Rows, 3)
	assert.Contains(t, err.Error(), `a row matching {"u":{"id":4}}`)
}

func TestAssertRowOrder(t *testing.T) {
	rows := sampleRows()

	tests := []struct {
		name    string
		column  string
		values  []any
		wantErr string
	}{
		{"in order", "u.id", []any{1, 2, 3}, ""},
		{"gaps allowed", "u.id", []any{1, 3}, ""},
		{"out of order", "u.id", []any{3, 1}, "should be before"},
		{"missing value", "u.id", []any{1, 7}, "missing value: 7"},
		{"duplicate values", "u.status", []any{"active", "active"}, "should be before"},
		{"null row field", "o.id", []any{10}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertRowOrder(rows, Assertion{Type: AssertRowOrder, Column: tt.column, Values: tt.values})
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRowCount(t *testing.T) {
	rows := sampleRows()

	require.NoError(t, assertRowCount(rows, Assertion{Count: 3}))
	require.NoError(t, assertRowCount(rows, Assertion{Row: map[string]any{"u": map[string]any{"status": "active"}}, Count: 2}))
	require.NoError(t, assertRowCount(rows, Assertion{Row: map[string]any{"o": nil}, Count: 1}))

	err := assertRowCount(rows, Assertion{Type: AssertRowCount, Row: map[string]any{"u": map[string]any{"status": "gone"}}, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Expected: 2 rows matching {"u":{"status":"gone"}}`)
	assert.Contains(t, err.Error(), `Actual: 1 rows matching`)
}

func TestLookup(t *testing.T) {
	row := narrow.Row{"id": int64(5), "u": map[string]any{"id": int64(1)}, "o": nil}

	v, ok := lookup(row, "id")
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)

	v, ok = lookup(row, "u.id")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)

	_, ok = lookup(row, "o.id")
	assert.False(t, ok)

	_, ok = lookup(row, "missing")
	assert.False(t, ok)
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, `id=3 AND status="gone"`, formatWhereClause(map[string]any{"status": "gone", "id": 3}))
}

func TestEvaluateAssertions_FinalStateWithoutStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRowCount, Count: 0},
		{Type: AssertFinalState, Table: "users", Expect: map[string]any{"id": 1}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "final_state requires database context")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
