package sqltext

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Inline renders t with every parameter replaced by an escaped SQL
// literal. DDL statements such as partial index predicates cannot carry
// bound parameters, so they are rendered this way.
func (t Text) Inline() (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if !p.isParam {
			b.WriteString(p.literal)
			continue
		}
		lit, err := InlineValue(p.param)
		if err != nil {
			return "", err
		}
		b.WriteString(lit)
	}
	return b.String(), nil
}

// InlineValue renders a single Go value as a SQL literal.
func InlineValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return QuoteString(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return inlineFloat(float64(x))
	case float64:
		return inlineFloat(x)
	case time.Time:
		return QuoteString(x.UTC().Format(time.RFC3339Nano)), nil
	case json.RawMessage:
		return QuoteString(string(x)), nil
	case fmt.Stringer:
		return QuoteString(x.String()), nil
	default:
		return "", fmt.Errorf("cannot inline value of type %T", v)
	}
}

func inlineFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("cannot inline non-finite float %v", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
