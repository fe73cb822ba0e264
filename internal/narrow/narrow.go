// Package narrow verifies executed result rows against the expression tree
// of the query that produced them.
//
// Evaluate re-interprets a narrowing predicate row by row, independent of
// the database. Verification failures are data: a Result with Passed false
// and a structured Context. Only programming errors, such as a column the
// result rows cannot carry, are returned as error.
package narrow

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
)

// Row is one decoded result row keyed by output column name. Whole-row
// projections hold a map[string]any object, or nil when a LEFT JOIN found
// no match.
type Row map[string]any

// Reason categorizes a verification failure.
type Reason string

const (
	ReasonLengthAssertionFailed Reason = "LENGTH_ASSERTION_FAILED"
	ReasonComparisonFailed      Reason = "COMPARISON_FAILED"
	ReasonNullCheckFailed       Reason = "NULL_CHECK_FAILED"
	ReasonNotNarrowable         Reason = "NOT_NARROWABLE"
)

// Context describes why verification failed. Fields that do not apply to
// the reason are omitted from its JSON form.
type Context struct {
	Reason         Reason `json:"reason"`
	ExpectedLength *int   `json:"expectedLength,omitempty"`
	Length         *int   `json:"length,omitempty"`
	Node           string `json:"node,omitempty"`
	Operator       string `json:"operator,omitempty"`
	Column         string `json:"column,omitempty"`
	Row            *int   `json:"row,omitempty"`
	Expected       any    `json:"expected,omitempty"`
	Actual         any    `json:"actual,omitempty"`
}

// String renders the context as JSON.
func (c *Context) String() string {
	if c == nil {
		return "<nil>"
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%s (%v)", c.Reason, err)
	}
	return string(b)
}

// Result is the outcome of Evaluate. Items are the verified rows.
type Result struct {
	Passed  bool
	Context *Context
	Items   []Row
}

// Option configures Evaluate.
type Option func(*evaluator)

// WithCaseInsensitiveLike matches LIKE patterns ignoring the case of ASCII
// letters. Use it for rows produced by SQLite.
func WithCaseInsensitiveLike() Option {
	return func(ev *evaluator) { ev.like.foldCase = true }
}

// Evaluate checks rows against v:
//  1. if v.Length is set and differs from len(rows), it fails with
//     LENGTH_ASSERTION_FAILED
//  2. if v.Filter is set, every row must satisfy it; evaluation stops at
//     the first failing row
//
// q is the query the rows came from; its select list decides how column
// references resolve to row values.
func Evaluate(q *queryir.Select, rows []Row, v queryir.Verification, opts ...Option) (Result, error) {
	result := Result{Passed: true, Items: rows}

	if v.Length != nil && len(rows) != *v.Length {
		expected, got := *v.Length, len(rows)
		result.Passed = false
		result.Context = &Context{
			Reason:         ReasonLengthAssertionFailed,
			ExpectedLength: &expected,
			Length:         &got,
		}
		return result, nil
	}
	if v.Filter == nil {
		return result, nil
	}
	if q == nil {
		return Result{}, fmt.Errorf("narrow: filter given without a query")
	}

	ev := newEvaluator(q, rows)
	for _, opt := range opts {
		opt(ev)
	}
	all := make([]int, len(rows))
	for i := range all {
		all[i] = i
	}
	out, err := ev.eval(v.Filter, all)
	if err != nil {
		return Result{}, err
	}
	if out.unsupported != nil {
		result.Passed = false
		result.Context = out.unsupported
		return result, nil
	}
	for i, ok := range out.pass {
		if !ok {
			result.Passed = false
			result.Context = out.ctx[i]
			return result, nil
		}
	}
	return result, nil
}

// outcome holds per-row results aligned with the row indexes evaluated.
// unsupported is set when the predicate cannot be narrowed at all.
type outcome struct {
	pass        []bool
	ctx         []*Context
	unsupported *Context
}

func newOutcome(n int) outcome {
	return outcome{pass: make([]bool, n), ctx: make([]*Context, n)}
}

func allPass(n int) outcome {
	out := newOutcome(n)
	for i := range out.pass {
		out.pass[i] = true
	}
	return out
}

func notNarrowable(node queryir.Node) outcome {
	return outcome{unsupported: &Context{Reason: ReasonNotNarrowable, Node: node.Tag().String()}}
}

type evaluator struct {
	q         *queryir.Select
	rows      []Row
	wholeRows map[string]string
	like      likeMatcher
}

func newEvaluator(q *queryir.Select, rows []Row) *evaluator {
	return &evaluator{q: q, rows: rows, wholeRows: q.WholeRowKeys()}
}

// eval evaluates predicate e over the rows at idx.
func (ev *evaluator) eval(e queryir.Expression, idx []int) (outcome, error) {
	switch n := e.(type) {
	case queryir.Logical:
		return ev.evalLogical(n, idx)
	case queryir.Comparator:
		return ev.evalComparator(n, idx)
	case queryir.InList:
		return ev.evalInList(n, idx)
	case queryir.NullTest:
		return ev.evalNullTest(n, idx)
	case queryir.If:
		return ev.evalIf(n, idx)
	case queryir.Bracket:
		return ev.eval(n.Inner, idx)
	case queryir.ColumnRef, queryir.Constant:
		if datatype.IsBoolean(n.DataType()) {
			return ev.evalTruth(n, idx)
		}
	}
	return notNarrowable(e), nil
}

// evalTruth treats a boolean column or constant as a predicate.
func (ev *evaluator) evalTruth(e queryir.Expression, idx []int) (outcome, error) {
	values, unsupported, err := ev.values(e, idx)
	if err != nil || unsupported != nil {
		return outcome{unsupported: unsupported}, err
	}
	out := newOutcome(len(idx))
	for i, row := range idx {
		if b, ok := values[i].(bool); ok && b {
			out.pass[i] = true
			continue
		}
		out.ctx[i] = &Context{
			Reason:   ReasonComparisonFailed,
			Node:     e.Tag().String(),
			Column:   columnName(e),
			Row:      intPtr(row),
			Expected: true,
			Actual:   values[i],
		}
	}
	return out, nil
}

func (ev *evaluator) evalLogical(n queryir.Logical, idx []int) (outcome, error) {
	left, err := ev.eval(n.Left, idx)
	if err != nil || left.unsupported != nil {
		return left, err
	}
	right, err := ev.eval(n.Right, idx)
	if err != nil || right.unsupported != nil {
		return right, err
	}

	out := newOutcome(len(idx))
	for i := range idx {
		switch n.Op {
		case queryir.OpAnd:
			out.pass[i] = left.pass[i] && right.pass[i]
		case queryir.OpOr:
			out.pass[i] = left.pass[i] || right.pass[i]
		}
		if out.pass[i] {
			continue
		}
		if left.ctx[i] != nil {
			out.ctx[i] = left.ctx[i]
		} else {
			out.ctx[i] = right.ctx[i]
		}
	}
	return out, nil
}

func (ev *evaluator) evalComparator(n queryir.Comparator, idx []int) (outcome, error) {
	left, unsupported, err := ev.values(n.Left, idx)
	if err != nil || unsupported != nil {
		return outcome{unsupported: unsupported}, err
	}
	right, unsupported, err := ev.values(n.Right, idx)
	if err != nil || unsupported != nil {
		return outcome{unsupported: unsupported}, err
	}
	if len(left) != len(right) {
		return outcome{}, fmt.Errorf("narrow: %s operands resolved to %d and %d values", n.Op, len(left), len(right))
	}

	out := newOutcome(len(idx))
	for i, row := range idx {
		if ev.compare(n.Op, left[i], right[i]) {
			out.pass[i] = true
			continue
		}
		out.ctx[i] = &Context{
			Reason:   ReasonComparisonFailed,
			Node:     n.Tag().String(),
			Operator: string(n.Op),
			Column:   columnName(n.Left),
			Row:      intPtr(row),
			Expected: right[i],
			Actual:   left[i],
		}
	}
	return out, nil
}

func (ev *evaluator) evalInList(n queryir.InList, idx []int) (outcome, error) {
	left, unsupported, err := ev.values(n.Left, idx)
	if err != nil || unsupported != nil {
		return outcome{unsupported: unsupported}, err
	}
	items := make([][]any, len(n.Items))
	for j, item := range n.Items {
		if items[j], unsupported, err = ev.values(item, idx); err != nil || unsupported != nil {
			return outcome{unsupported: unsupported}, err
		}
	}

	out := newOutcome(len(idx))
	for i, row := range idx {
		found := false
		candidates := make([]any, len(items))
		for j := range items {
			candidates[j] = items[j][i]
			if compare(queryir.OpEq, left[i], items[j][i]) {
				found = true
			}
		}
		// NOT IN with a NULL on either side is never true
		out.pass[i] = found != n.Not && left[i] != nil
		if out.pass[i] {
			continue
		}
		out.ctx[i] = &Context{
			Reason:   ReasonComparisonFailed,
			Node:     n.Tag().String(),
			Operator: n.Tag().Type,
			Column:   columnName(n.Left),
			Row:      intPtr(row),
			Expected: candidates,
			Actual:   left[i],
		}
	}
	return out, nil
}

// evalNullTest checks nullability only when every column the operand reads
// belongs to an entity projected as a whole row; otherwise it passes.
func (ev *evaluator) evalNullTest(n queryir.NullTest, idx []int) (outcome, error) {
	refs := n.Operand.ColumnRefs()
	if len(refs) == 0 {
		return allPass(len(idx)), nil
	}
	for _, r := range refs {
		if _, ok := ev.wholeRows[r.Table]; !ok {
			return allPass(len(idx)), nil
		}
	}

	values, unsupported, err := ev.values(n.Operand, idx)
	if err != nil || unsupported != nil {
		return outcome{unsupported: unsupported}, err
	}

	expected := "NULL"
	if n.Not {
		expected = "NOT NULL"
	}
	out := newOutcome(len(idx))
	for i, row := range idx {
		isNull := values[i] == nil
		if isNull != n.Not {
			out.pass[i] = true
			continue
		}
		out.ctx[i] = &Context{
			Reason:   ReasonNullCheckFailed,
			Node:     n.Tag().String(),
			Operator: n.Keyword(),
			Column:   columnName(n.Operand),
			Row:      intPtr(row),
			Expected: expected,
			Actual:   values[i],
		}
	}
	return out, nil
}

// evalIf evaluates the condition, then each branch over only the rows the
// condition sent to it.
func (ev *evaluator) evalIf(n queryir.If, idx []int) (outcome, error) {
	cond, err := ev.eval(n.Cond, idx)
	if err != nil || cond.unsupported != nil {
		return cond, err
	}

	var thenIdx, elseIdx, thenPos, elsePos []int
	for i, row := range idx {
		if cond.pass[i] {
			thenIdx, thenPos = append(thenIdx, row), append(thenPos, i)
		} else {
			elseIdx, elsePos = append(elseIdx, row), append(elsePos, i)
		}
	}

	out := newOutcome(len(idx))
	for _, branch := range []struct {
		expr queryir.Expression
		idx  []int
		pos  []int
	}{{n.Then, thenIdx, thenPos}, {n.Else, elseIdx, elsePos}} {
		if len(branch.idx) == 0 {
			continue
		}
		res, err := ev.eval(branch.expr, branch.idx)
		if err != nil || res.unsupported != nil {
			return res, err
		}
		for j, p := range branch.pos {
			out.pass[p] = res.pass[j]
			out.ctx[p] = res.ctx[j]
		}
	}
	return out, nil
}

func columnName(e queryir.Expression) string {
	switch n := e.(type) {
	case queryir.ColumnRef:
		return n.Key()
	case queryir.JSONPath:
		return columnName(n.Base)
	case queryir.Bracket:
		return columnName(n.Inner)
	}
	return ""
}

func (ev *evaluator) compare(op queryir.CompareOp, l, r any) bool {
	if op == queryir.OpLike {
		return ev.like.match(l, r)
	}
	return compare(op, l, r)
}

func intPtr(n int) *int { return &n }
