package narrow

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/typesql/internal/queryir"
)

// compare applies op to two normalized values with SQL semantics: any
// comparison involving NULL is not true. Integers, booleans and timestamps
// compare exactly as int64; mixed with floats they compare as float64.
// Strings compare lexically; json and array values support only equality.
// LIKE is handled by likeMatcher.
func compare(op queryir.CompareOp, l, r any) bool {
	if l == nil || r == nil {
		return false
	}

	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return ordered(op, lt.UnixNano(), rt.UnixNano())
		}
	}
	if li, ok := integer(l); ok {
		if ri, ok := integer(r); ok {
			return ordered(op, li, ri)
		}
	}
	if ln, ok := number(l); ok {
		if rn, ok := number(r); ok {
			return ordered(op, ln, rn)
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return ordered(op, ls, rs)
		}
	}

	switch op {
	case queryir.OpEq:
		return cmp.Equal(l, r)
	case queryir.OpNe:
		return !cmp.Equal(l, r)
	}
	return false
}

func ordered[T int64 | float64 | string](op queryir.CompareOp, a, b T) bool {
	switch op {
	case queryir.OpEq:
		return a == b
	case queryir.OpNe:
		return a != b
	case queryir.OpLt:
		return a < b
	case queryir.OpLe:
		return a <= b
	case queryir.OpGt:
		return a > b
	case queryir.OpGe:
		return a >= b
	}
	return false
}

// integer converts integral, boolean and timestamp values to int64.
// Timestamps compare against numbers as Unix seconds.
func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case time.Time:
		return x.Unix(), true
	}
	return 0, false
}

// number converts any numeric value to float64.
func number(v any) (float64, bool) {
	if f, ok := v.(float64); ok {
		return f, true
	}
	if n, ok := integer(v); ok {
		return float64(n), true
	}
	return 0, false
}

// likeMatcher evaluates LIKE. Patterns are compiled once per evaluation.
// By default matching is case-sensitive, as in Postgres; foldCase matches
// ASCII letters case-insensitively, as SQLite does.
type likeMatcher struct {
	foldCase bool
	patterns map[string]*regexp.Regexp
}

func (m *likeMatcher) match(l, r any) bool {
	ls, lok := l.(string)
	rs, rok := r.(string)
	if !lok || !rok {
		return false
	}
	if m.foldCase {
		ls, rs = asciiLower(ls), asciiLower(rs)
	}
	re, ok := m.patterns[rs]
	if !ok {
		re = likePattern(rs)
		if m.patterns == nil {
			m.patterns = map[string]*regexp.Regexp{}
		}
		m.patterns[rs] = re
	}
	return re.MatchString(ls)
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// likePattern translates a LIKE pattern to an anchored regexp: % matches
// any run of characters and _ exactly one.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
