package expr

import (
	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

// Path is an ordered list of JSON field-access steps.
type Path []queryir.PathStep

// Keys builds a path of object keys.
func Keys(keys ...string) Path {
	p := make(Path, len(keys))
	for i, k := range keys {
		p[i] = queryir.PathStep{Key: k}
	}
	return p
}

// Key returns p extended with an object key.
func (p Path) Key(k string) Path {
	return append(p[:len(p):len(p)], queryir.PathStep{Key: k})
}

// Index returns p extended with an array index.
func (p Path) Index(i int) Path {
	return append(p[:len(p):len(p)], queryir.PathStep{Index: i, IsIndex: true})
}

// AccessJSON projects a JSON value at path, rendered with -> for every
// step. The result is nullable json.
func (e Expr) AccessJSON(path Path) (Expr, error) { return e.access(path, false) }

// AccessJSONText projects the value at path as text: the last step renders
// as ->>. The result is nullable varchar.
func (e Expr) AccessJSONText(path Path) (Expr, error) { return e.access(path, true) }

func (e Expr) access(path Path, asText bool) (Expr, error) {
	if err := e.check("->"); err != nil {
		return Expr{}, err
	}
	if !datatype.IsJSON(e.DataType()) {
		return Expr{}, sqlerr.NewTypeMismatch("->", e.DataType(), datatype.JSON{})
	}
	if len(path) == 0 {
		return Expr{}, sqlerr.NewInvalidDefinition("JSON path needs at least one step")
	}
	steps := make([]queryir.PathStep, len(path))
	copy(steps, path)

	// Chained access continues the existing path.
	if base, ok := e.node.(queryir.JSONPath); ok && !base.AsText {
		steps = append(append([]queryir.PathStep{}, base.Steps...), steps...)
		return Expr{node: queryir.JSONPath{Base: base.Base, Steps: steps, AsText: asText}}, nil
	}
	return Expr{node: queryir.JSONPath{Base: e.node, Steps: steps, AsText: asText}}, nil
}
