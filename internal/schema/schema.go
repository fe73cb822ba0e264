// Package schema loads declared tables and indexes from CUE.
//
// A schema file declares tables under a top-level tables struct. Column
// order follows declaration order; index partial conditions use the same
// declarative form as verification scenarios:
//
//	package schema
//
//	tables: users: {
//		alias: "u"
//		columns: {
//			id:         "int"
//			status:     "varchar"
//			deleted_at: "timestamp?"
//			tags:       "varchar[]"
//		}
//		indexes: [
//			{columns: ["status"], where: {column: "deleted_at", is: "null"}},
//			{columns: [{column: "id", desc: true}], unique: true},
//		]
//	}
//
// Every file is unified with the #Schema definition embedded in this
// package, so misspelled fields are reported with their CUE position.
package schema

import (
	_ "embed"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/expr"
	"github.com/roach88/typesql/internal/index"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
)

//go:embed schema.cue
var definitionsCUE string

// Schema is the set of declared tables and their indexes.
type Schema struct {
	Tables  []queryir.Table
	Indexes []index.Definition
}

// Table finds a declared table by name or alias.
func (s *Schema) Table(name string) (queryir.Table, bool) {
	i := slices.IndexFunc(s.Tables, func(t queryir.Table) bool {
		return t.Name == name || t.Alias == name
	})
	if i < 0 {
		return queryir.Table{}, false
	}
	return s.Tables[i], true
}

// IndexesOn returns the indexes declared on table.
func (s *Schema) IndexesOn(table string) []index.Definition {
	var out []index.Definition
	for _, def := range s.Indexes {
		if def.Table().Name == table {
			out = append(out, def)
		}
	}
	return out
}

// Compile parses a CUE value holding a tables struct into a Schema. The
// value is validated against #Schema first.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := v.Context().CompileString(definitionsCUE, cue.Filename("schema.cue"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile schema definitions: %w", err)
	}
	v = def.LookupPath(cue.ParsePath("#Schema")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{}
	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return s, nil
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		table, err := parseTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if _, dup := s.Table(table.Ref()); dup {
			return nil, &CompileError{
				Field:   "tables." + table.Name,
				Message: fmt.Sprintf("alias %q is already in use", table.Ref()),
				Pos:     iter.Value().Pos(),
			}
		}
		s.Tables = append(s.Tables, table)

		defs, err := parseIndexes(table, iter.Value())
		if err != nil {
			return nil, err
		}
		s.Indexes = append(s.Indexes, defs...)
	}
	return s, nil
}

func parseTable(name string, v cue.Value) (queryir.Table, error) {
	table := queryir.Table{Name: name}

	if aliasVal := v.LookupPath(cue.ParsePath("alias")); aliasVal.Exists() {
		alias, err := aliasVal.String()
		if err != nil {
			return table, formatCUEError(err)
		}
		table.Alias = alias
	}

	colIter, err := v.LookupPath(cue.ParsePath("columns")).Fields()
	if err != nil {
		return table, formatCUEError(err)
	}
	for colIter.Next() {
		decl, err := colIter.Value().String()
		if err != nil {
			return table, formatCUEError(err)
		}
		t, err := datatype.Parse(decl)
		if err != nil {
			return table, &CompileError{
				Field:   fmt.Sprintf("tables.%s.columns.%s", name, colIter.Label()),
				Message: err.Error(),
				Pos:     colIter.Value().Pos(),
			}
		}
		table.Columns = append(table.Columns, queryir.ColumnDef{Name: colIter.Label(), Type: t})
	}
	if len(table.Columns) == 0 {
		return table, &CompileError{
			Field:   "tables." + name + ".columns",
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}
	return table, nil
}

func parseIndexes(table queryir.Table, v cue.Value) ([]index.Definition, error) {
	indexesVal := v.LookupPath(cue.ParsePath("indexes"))
	if !indexesVal.Exists() {
		return nil, nil
	}
	iter, err := indexesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []index.Definition
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("tables.%s.indexes[%d]", table.Name, i)
		def, err := parseIndex(table, iter.Value())
		if err != nil {
			return nil, wrapDefinitionError(field, iter.Value().Pos(), err)
		}
		if err := def.Validate(); err != nil {
			return nil, wrapDefinitionError(field, iter.Value().Pos(), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func parseIndex(table queryir.Table, v cue.Value) (index.Definition, error) {
	keyIter, err := v.LookupPath(cue.ParsePath("columns")).List()
	if err != nil {
		return index.Definition{}, formatCUEError(err)
	}
	var keys []index.Key
	for keyIter.Next() {
		k, err := parseKey(table, keyIter.Value())
		if err != nil {
			return index.Definition{}, err
		}
		keys = append(keys, k)
	}
	def := index.On(table, keys...)

	flags := []struct {
		name  string
		apply func(index.Definition) index.Definition
	}{
		{"unique", index.Definition.Unique},
		{"concurrently", index.Definition.Concurrently},
		{"inverted", index.Definition.Inverted},
	}
	for _, f := range flags {
		on, err := optionalBool(v, f.name)
		if err != nil {
			return def, err
		}
		if on {
			def = f.apply(def)
		}
	}

	if s, ok, err := optionalString(v, "name"); err != nil {
		return def, err
	} else if ok {
		def = def.Named(s)
	}
	if s, ok, err := optionalString(v, "method"); err != nil {
		return def, err
	} else if ok {
		def = def.Using(s)
	}
	if s, ok, err := optionalString(v, "partition_by"); err != nil {
		return def, err
	} else if ok {
		def = def.PartitionBy(s)
	}

	if storingVal := v.LookupPath(cue.ParsePath("storing")); storingVal.Exists() {
		var storing []string
		if err := storingVal.Decode(&storing); err != nil {
			return def, formatCUEError(err)
		}
		def = def.Storing(storing...)
	}

	if withVal := v.LookupPath(cue.ParsePath("with")); withVal.Exists() {
		withIter, err := withVal.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for withIter.Next() {
			param, err := goValue(withIter.Value())
			if err != nil {
				return def, err
			}
			def = def.With(withIter.Label(), param)
		}
	}

	if whereVal := v.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
		cond, err := parseCondition(whereVal)
		if err != nil {
			return def, err
		}
		e, err := cond.Build(columnResolver(table))
		if err != nil {
			return def, err
		}
		def = def.Where(e.Node())
	}
	return def, nil
}

func parseKey(table queryir.Table, v cue.Value) (index.Key, error) {
	if v.IncompleteKind() == cue.StringKind {
		column, err := v.String()
		if err != nil {
			return index.Key{}, formatCUEError(err)
		}
		return index.Col(table, column), nil
	}

	var spec struct {
		Column string   `json:"column"`
		Path   []string `json:"path"`
		Raw    string   `json:"raw"`
		Desc   bool     `json:"desc"`
	}
	if err := v.Decode(&spec); err != nil {
		return index.Key{}, formatCUEError(err)
	}

	var k index.Key
	switch {
	case spec.Raw != "":
		k = index.Raw(spec.Raw)
	case len(spec.Path) > 0:
		col, err := columnResolver(table)(spec.Column)
		if err != nil {
			return index.Key{}, err
		}
		e, err := col.AccessJSON(expr.Keys(spec.Path...))
		if err != nil {
			return index.Key{}, err
		}
		k = index.Expression(e.Node())
	default:
		k = index.Col(table, spec.Column)
	}
	if spec.Desc {
		k = k.Descending()
	}
	return k, nil
}

// columnResolver resolves bare column names of table, as used in index
// conditions and keys.
func columnResolver(table queryir.Table) expr.Resolver {
	return func(column string) (expr.Expr, error) {
		def, ok := table.Column(column)
		if !ok {
			return expr.Expr{}, sqlerr.NewUnresolved(table.Name, column, "index")
		}
		return expr.Col(queryir.ColumnRef{Table: table.Name, Column: column, Type: def.Type}), nil
	}
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// CompileError is a schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap exposes the underlying definition error, if any.
func (e *CompileError) Unwrap() error { return e.err }

func wrapDefinitionError(field string, pos token.Pos, err error) error {
	if _, ok := err.(*CompileError); ok {
		return err
	}
	return &CompileError{Field: field, Message: err.Error(), Pos: pos, err: err}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
