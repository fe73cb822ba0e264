// Package sqltext provides an immutable, composable parameterized SQL string.
//
// A Text is an ordered sequence of literal fragments and parameter slots.
// Placeholder numbers are never stored: they are assigned left to right
// when the text is rendered, so concatenating or joining Texts can never
// produce a misnumbered placeholder. For any A and B,
// Concat(A, B).Parameters() is A.Parameters() followed by B.Parameters(),
// and the i-th placeholder renders as $i.
//
// Parameter values are kept as the Go values they were given (int64,
// float64, bool, time.Time, ...) so the execution layer can bind them
// natively. Only Raw, Identifier and StringLiteral put text into the SQL
// itself.
package sqltext

import (
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderStyle selects how parameter slots are rendered.
type PlaceholderStyle int

const (
	// Dollar renders $1, $2, ... (Postgres family).
	Dollar PlaceholderStyle = iota
	// Question renders ? for every slot (SQLite, MySQL).
	Question
)

// part is a literal fragment or, when isParam is set, a parameter slot.
type part struct {
	literal string
	param   any
	isParam bool
}

// Text is an immutable parameterized SQL fragment. The zero value is empty.
type Text struct {
	parts []part
}

// Raw creates a Text from trusted SQL. It is never escaped; do not pass
// user-controlled input.
func Raw(sql string) Text {
	if sql == "" {
		return Text{}
	}
	return Text{parts: []part{{literal: sql}}}
}

// Param creates a Text holding a single bound parameter.
func Param(v any) Text {
	return Text{parts: []part{{param: v, isParam: true}}}
}

// Identifier renders a double-quoted, dot-separated identifier, e.g.
// Identifier("t", "status") is "t"."status". Embedded quotes are doubled.
func Identifier(names ...string) Text {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return Raw(strings.Join(quoted, "."))
}

// QuoteIdentifier double-quotes a single identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// StringLiteral renders s as an inline single-quoted SQL string literal.
// Use it only where the dialect cannot bind a parameter (JSON path keys,
// DDL); everywhere else use Param.
func StringLiteral(s string) Text {
	return Raw(QuoteString(s))
}

// QuoteString single-quotes s, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Concat joins texts with no separator.
func Concat(items ...Text) Text {
	n := 0
	for _, it := range items {
		n += len(it.parts)
	}
	out := make([]part, 0, n)
	for _, it := range items {
		out = append(out, it.parts...)
	}
	return Text{parts: out}
}

// Join concatenates items with sep between each pair.
func Join(items []Text, sep Text) Text {
	if len(items) == 0 {
		return Text{}
	}
	all := make([]Text, 0, 2*len(items)-1)
	for i, it := range items {
		if i > 0 {
			all = append(all, sep)
		}
		all = append(all, it)
	}
	return Concat(all...)
}

// Format interleaves literal fragments with arguments. Each %v in format
// is replaced by the next argument: a Text argument is spliced in as-is,
// any other value becomes a bound parameter. %% renders a literal percent.
//
//	Format("%v = %v", Identifier("t", "id"), 42) // "t"."id" = $1, [42]
func Format(format string, args ...any) Text {
	var items []Text
	var lit strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			lit.WriteByte(format[i])
			continue
		}
		switch format[i+1] {
		case '%':
			lit.WriteByte('%')
			i++
		case 'v':
			items = append(items, Raw(lit.String()))
			lit.Reset()
			if next >= len(args) {
				panic(fmt.Sprintf("sqltext.Format: missing argument %d in %q", next+1, format))
			}
			items = append(items, asText(args[next]))
			next++
			i++
		default:
			lit.WriteByte(format[i])
		}
	}
	if next != len(args) {
		panic(fmt.Sprintf("sqltext.Format: %d arguments for %d verbs in %q", len(args), next, format))
	}
	items = append(items, Raw(lit.String()))
	return Concat(items...)
}

func asText(v any) Text {
	if t, ok := v.(Text); ok {
		return t
	}
	return Param(v)
}

// Append returns t followed by others.
func (t Text) Append(others ...Text) Text {
	return Concat(append([]Text{t}, others...)...)
}

// Wrap returns (t).
func (t Text) Wrap() Text {
	return Concat(Raw("("), t, Raw(")"))
}

// IsEmpty reports whether t renders as the empty string with no parameters.
func (t Text) IsEmpty() bool {
	for _, p := range t.parts {
		if p.isParam || p.literal != "" {
			return false
		}
	}
	return true
}

// Query renders the SQL with $n placeholders.
func (t Text) Query() string {
	return t.QueryFor(Dollar)
}

// QueryFor renders the SQL with the given placeholder style.
func (t Text) QueryFor(style PlaceholderStyle) string {
	var b strings.Builder
	n := 0
	for _, p := range t.parts {
		if !p.isParam {
			b.WriteString(p.literal)
			continue
		}
		n++
		switch style {
		case Question:
			b.WriteByte('?')
		default:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

// Parameters returns the bound values in placeholder order.
func (t Text) Parameters() []any {
	var out []any
	for _, p := range t.parts {
		if p.isParam {
			out = append(out, p.param)
		}
	}
	if out == nil {
		return []any{}
	}
	return out
}

// String renders the query for debugging; parameters are not shown.
func (t Text) String() string {
	return t.Query()
}
