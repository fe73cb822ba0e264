package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/typesql/internal/canonical"
	"github.com/roach88/typesql/internal/expr"
	"github.com/roach88/typesql/internal/narrow"
	"github.com/roach88/typesql/internal/query"
	"github.com/roach88/typesql/internal/schema"
	"github.com/roach88/typesql/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Rows     []narrow.Row // Rows the assertion looked at
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(row))
		}
	}

	return buf.String()
}

// assertRowsContain checks that some row matches the expected subset.
func assertRowsContain(rows []narrow.Row, assertion Assertion) error {
	for _, row := range rows {
		if matchSubset(map[string]any(row), assertion.Row) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertRowsContain,
		Expected: fmt.Sprintf("a row matching %s", describe(assertion.Row)),
		Actual:   "not found in result",
		Rows:     rows,
	}
}

// assertRowOrder checks that Column takes the expected values in order.
// Other values may appear in between.
func assertRowOrder(rows []narrow.Row, assertion Assertion) error {
	positions := make([]int, len(assertion.Values))
	for i, want := range assertion.Values {
		positions[i] = -1
		for j, row := range rows {
			got, _ := lookup(row, assertion.Column)
			if valuesEqual(got, want) {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("all values of %s present: %s", assertion.Column, describe(assertion.Values)),
				Actual:   fmt.Sprintf("missing value: %s", describe(want)),
				Rows:     rows,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertRowOrder,
				Expected: fmt.Sprintf("%s in order: %s", assertion.Column, describe(assertion.Values)),
				Actual: fmt.Sprintf("%s (row %d) should be before %s (row %d)",
					describe(assertion.Values[i-1]), positions[i-1]+1,
					describe(assertion.Values[i]), positions[i]+1),
				Rows: rows,
			}
		}
	}
	return nil
}

// assertRowCount checks that exactly Count rows match Row. An empty Row
// matches every row.
func assertRowCount(rows []narrow.Row, assertion Assertion) error {
	count := 0
	for _, row := range rows {
		if matchSubset(map[string]any(row), assertion.Row) {
			count++
		}
	}

	if count != assertion.Count {
		what := "rows"
		if len(assertion.Row) > 0 {
			what = "rows matching " + describe(assertion.Row)
		}
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Rows:     rows,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected values. The lookup query is built and
// compiled like any other, so table and column names are checked against
// the schema and values are bound as parameters.
func assertFinalState(ctx context.Context, st *store.Store, sch *schema.Schema, assertion Assertion) error {
	table, ok := sch.Table(assertion.Table)
	if !ok {
		return fmt.Errorf("final_state: unknown table %q", assertion.Table)
	}
	table = table.As(table.Name)

	b := query.From(table)
	resolve := func(name string) (expr.Expr, error) { return b.Col(table.Name, name) }
	for _, key := range canonical.SortedKeys(assertion.Where) {
		c := expr.Condition{Column: key, Value: assertion.Where[key]}
		if c.Value == nil {
			c.Is = "null"
		}
		cond, err := c.Build(resolve)
		if err == nil {
			b, err = b.And(cond)
		}
		if err != nil {
			return fmt.Errorf("final_state where %s: %w", key, err)
		}
	}

	rows, err := st.Select(ctx, b.Build())
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
			Rows:     rows,
		}
	}

	actual, _ := rows[0][table.Name].(map[string]any)
	for _, key := range canonical.SortedKeys(assertion.Expect) {
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s", key, describe(actual)),
			}
		}
		if !valuesEqual(got, assertion.Expect[key]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %s", key, describe(assertion.Expect[key])),
				Actual:   fmt.Sprintf("field %q = %s", key, describe(got)),
			}
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	parts := make([]string, 0, len(where))
	for _, k := range canonical.SortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, describe(where[k])))
	}
	return strings.Join(parts, " AND ")
}

// lookup reads an output column, or alias.column inside a whole-row object.
func lookup(row narrow.Row, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	alias, field, ok := strings.Cut(column, ".")
	if !ok {
		return nil, false
	}
	obj, ok := row[alias].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok
}

// matchSubset checks if actual contains all expected keys (subset match).
// Nested objects are matched as subsets; everything else must be equal.
func matchSubset(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		wantObj, wantIsObj := want.(map[string]any)
		gotObj, gotIsObj := got.(map[string]any)
		if wantIsObj && gotIsObj {
			if !matchSubset(gotObj, wantObj) {
				return false
			}
			continue
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a decoded database value with a value written in a
// scenario. Both sides are rendered as canonical JSON, which absorbs the
// int/int64/float64 and time/string differences between the two.
func valuesEqual(actual, expected any) bool {
	a, err := canonical.Marshal(actual)
	if err != nil {
		return false
	}
	e, err := canonical.Marshal(expected)
	if err != nil {
		return false
	}
	return bytes.Equal(a, e)
}

func describe(v any) string {
	b, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store  *store.Store
	Schema *schema.Schema
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRowsContain:
			err = assertRowsContain(result.Rows, assertion)
		case AssertRowOrder:
			err = assertRowOrder(result.Rows, assertion)
		case AssertRowCount:
			err = assertRowCount(result.Rows, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil || actx.Schema == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.Schema, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
