package narrow

import (
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// values resolves operand e to one value per row in idx. A selected item
// structurally equal to e is read directly from the row; column references
// otherwise resolve through whole-row projections.
func (ev *evaluator) values(e queryir.Expression, idx []int) ([]any, *Context, error) {
	if name, ok := ev.selected(e); ok {
		out := make([]any, len(idx))
		for i, row := range idx {
			out[i] = Normalize(ev.rows[row][name], e.DataType())
		}
		return out, nil, nil
	}

	switch n := e.(type) {
	case queryir.Constant:
		v := normalizeConstant(n)
		out := make([]any, len(idx))
		for i := range out {
			out[i] = v
		}
		return out, nil, nil

	case queryir.ArrayConstant:
		elems := make([]any, len(n.Elems))
		for j, el := range n.Elems {
			c, ok := el.(queryir.Constant)
			if !ok {
				return nil, &Context{Reason: ReasonNotNarrowable, Node: el.Tag().String()}, nil
			}
			elems[j] = normalizeConstant(c)
		}
		out := make([]any, len(idx))
		for i := range out {
			out[i] = elems
		}
		return out, nil, nil

	case queryir.ColumnRef:
		key, ok := ev.wholeRows[n.Table]
		if !ok {
			return nil, nil, sqlerr.NewUnresolved(n.Table, n.Column, "result rows")
		}
		out := make([]any, len(idx))
		for i, row := range idx {
			obj, _ := Normalize(ev.rows[row][key], datatype.JSON{}).(map[string]any)
			if obj == nil {
				continue
			}
			out[i] = Normalize(obj[n.Column], n.Type)
		}
		return out, nil, nil

	case queryir.JSONPath:
		base, unsupported, err := ev.values(n.Base, idx)
		if err != nil || unsupported != nil {
			return nil, unsupported, err
		}
		out := make([]any, len(idx))
		for i := range idx {
			out[i] = traverse(Normalize(base[i], datatype.JSON{}), n.Steps, n.AsText)
		}
		return out, nil, nil

	case queryir.Bracket:
		return ev.values(n.Inner, idx)
	}
	return nil, &Context{Reason: ReasonNotNarrowable, Node: e.Tag().String()}, nil
}

// selected returns the output name of an explicit select item whose
// expression equals e.
func (ev *evaluator) selected(e queryir.Expression) (string, bool) {
	if !ev.q.Explicit {
		return "", false
	}
	if _, isConst := e.(queryir.Constant); isConst {
		return "", false
	}
	for _, item := range ev.q.Items {
		if sameOperand(item.Expr, e) {
			if name := item.OutputName(); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// sameOperand reports whether a select item computes e. Column references
// match on alias and column name alone, so a nullable reference finds the
// column selected through a LEFT JOIN and vice versa.
func sameOperand(item, e queryir.Expression) bool {
	if a, ok := item.(queryir.ColumnRef); ok {
		b, ok := e.(queryir.ColumnRef)
		return ok && a.Key() == b.Key()
	}
	return reflect.DeepEqual(item, e)
}

// traverse follows JSON path steps. Missing keys and indexes yield nil;
// asText renders the leaf as text the way ->> does.
func traverse(v any, steps []queryir.PathStep, asText bool) any {
	for _, s := range steps {
		switch x := v.(type) {
		case map[string]any:
			if s.IsIndex {
				return nil
			}
			v = x[s.Key]
		case []any:
			if !s.IsIndex || s.Index < 0 || s.Index >= len(x) {
				return nil
			}
			v = x[s.Index]
		default:
			return nil
		}
	}
	if !asText || v == nil {
		return v
	}
	if str, ok := v.(string); ok {
		return str
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func normalizeConstant(c queryir.Constant) any {
	if datatype.IsJSON(c.Type) {
		// round-trip so constants compare like decoded row values
		b, err := json.Marshal(c.Value)
		if err != nil {
			return c.Value
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return c.Value
		}
		return v
	}
	return Normalize(c.Value, c.Type)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Normalize converts a decoded driver or JSON value to the canonical Go
// representation of domain t: int64, float64, bool, string, time.Time,
// []any or map[string]any. Values that do not fit t are returned as is.
func Normalize(v any, t datatype.Type) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch dt := datatype.NonNullable(t).(type) {
	case datatype.Int:
		switch x := v.(type) {
		case float64:
			if x == float64(int64(x)) {
				return int64(x)
			}
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case bool:
			if x {
				return int64(1)
			}
			return int64(0)
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n
			}
		}
	case datatype.Float:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case int:
			return float64(x)
		case float32:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
	case datatype.Boolean:
		switch x := v.(type) {
		case int64:
			return x != 0
		case float64:
			return x != 0
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		}
	case datatype.Timestamp:
		if s, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts
				}
			}
		}
	case datatype.JSON:
		if s, ok := v.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
		}
	case datatype.Row:
		if s, ok := v.(string); ok {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return v
			}
			v = decoded
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(obj))
		for k, fv := range obj {
			out[k] = fv
		}
		for _, f := range dt.Fields {
			if fv, present := out[f.Name]; present {
				out[f.Name] = Normalize(fv, f.Type)
			}
		}
		return out
	case datatype.Array:
		if s, ok := v.(string); ok {
			var decoded []any
			if err := json.Unmarshal([]byte(s), &decoded); err != nil {
				return v
			}
			v = decoded
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface(), dt.Elem)
		}
		return out
	}
	return v
}
