package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/index"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqlerr"
	"github.com/roach88/typesql/internal/sqltext"
)

// CompileIndex renders CREATE INDEX DDL for def. DDL cannot bind
// parameters, so constants in key expressions and partial conditions are
// inlined as escaped literals.
//
// Postgres renders covering columns as INCLUDE and inverted indexes as
// USING GIN. Cockroach renders STORING, PARTITION BY and CREATE INVERTED
// INDEX. SQLite
// supports only plain and partial indexes; any other option is an
// INVALID_DEFINITION error.
func (c *SQLCompiler) CompileIndex(def index.Definition) (string, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}
	switch c.Dialect {
	case SQLite:
		if err := sqliteSupports(def); err != nil {
			return "", err
		}
	case Postgres:
		if def.Partition() != "" {
			return "", sqlerr.NewInvalidDefinition("postgres index %q cannot be partitioned", def.Name())
		}
	}
	ddl := &SQLCompiler{Dialect: c.Dialect, bareColumns: true}

	var b strings.Builder
	b.WriteString("CREATE ")
	if def.IsUnique() {
		b.WriteString("UNIQUE ")
	}
	if def.IsInverted() && c.Dialect == Cockroach {
		b.WriteString("INVERTED ")
	}
	b.WriteString("INDEX ")
	if def.IsConcurrent() {
		b.WriteString("CONCURRENTLY ")
	}
	b.WriteString(sqltext.QuoteIdentifier(def.Name()))
	b.WriteString(" ON ")
	b.WriteString(sqltext.QuoteIdentifier(def.Table().Name))

	if method := indexMethod(def, c.Dialect); method != "" {
		b.WriteString(" USING " + method)
	}

	keys := make([]string, 0, len(def.Keys()))
	for _, k := range def.Keys() {
		rendered, err := ddl.compileKey(k)
		if err != nil {
			return "", err
		}
		keys = append(keys, rendered)
	}
	b.WriteString(" (" + strings.Join(keys, ", ") + ")")

	if storing := def.StoringColumns(); len(storing) > 0 {
		quoted := make([]string, len(storing))
		for i, col := range storing {
			quoted[i] = sqltext.QuoteIdentifier(col)
		}
		keyword := " INCLUDE "
		if c.Dialect == Cockroach {
			keyword = " STORING "
		}
		b.WriteString(keyword + "(" + strings.Join(quoted, ", ") + ")")
	}

	if p := def.Partition(); p != "" {
		b.WriteString(" PARTITION BY " + p)
	}

	if params := def.Params(); len(params) > 0 {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		settings := make([]string, len(names))
		for i, name := range names {
			v, err := sqltext.InlineValue(params[name])
			if err != nil {
				return "", sqlerr.NewInvalidDefinition("index storage parameter %q: %v", name, err)
			}
			settings[i] = name + " = " + v
		}
		b.WriteString(" WITH (" + strings.Join(settings, ", ") + ")")
	}

	if cond := def.Condition(); cond != nil {
		txt, err := ddl.Compile(cond, nil)
		if err != nil {
			return "", err
		}
		inlined, err := txt.Inline()
		if err != nil {
			return "", fmt.Errorf("inline index condition: %w", err)
		}
		b.WriteString(" WHERE " + inlined)
	}
	return b.String(), nil
}

// CompileTable renders CREATE TABLE DDL for a declared table. Columns are
// NOT NULL unless their domain is nullable.
func (c *SQLCompiler) CompileTable(t queryir.Table) (string, error) {
	if t.Name == "" {
		return "", sqlerr.NewInvalidDefinition("table has no name")
	}
	if len(t.Columns) == 0 {
		return "", sqlerr.NewInvalidDefinition("table %q declares no columns", t.Name)
	}
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		typ, err := c.columnType(col.Type)
		if err != nil {
			return "", sqlerr.NewInvalidDefinition("column %s.%s: %v", t.Name, col.Name, err)
		}
		cols[i] = sqltext.QuoteIdentifier(col.Name) + " " + typ
		if !datatype.IsNullable(col.Type) {
			cols[i] += " NOT NULL"
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sqltext.QuoteIdentifier(t.Name), strings.Join(cols, ", ")), nil
}

// columnType names the storage type of a column domain. SQLite keeps json
// and arrays as TEXT; TIMESTAMP and BOOLEAN are declared so the driver
// converts them on scan.
func (c *SQLCompiler) columnType(t datatype.Type) (string, error) {
	if c.Dialect != SQLite {
		return datatype.SQLName(t)
	}
	switch datatype.NonNullable(t).(type) {
	case datatype.Varchar, datatype.JSON, datatype.Array:
		return "TEXT", nil
	case datatype.Int:
		return "INTEGER", nil
	case datatype.Float:
		return "REAL", nil
	case datatype.Boolean:
		return "BOOLEAN", nil
	case datatype.Timestamp:
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("domain %s has no column type", t)
}

func (c *SQLCompiler) compileKey(k index.Key) (string, error) {
	var rendered string
	if k.Raw != "" {
		rendered = k.Raw
	} else {
		txt, err := c.Compile(k.Expr, nil)
		if err != nil {
			return "", err
		}
		if rendered, err = txt.Inline(); err != nil {
			return "", fmt.Errorf("inline index key: %w", err)
		}
		if _, isColumn := k.Expr.(queryir.ColumnRef); !isColumn {
			// expression keys need their own parentheses
			rendered = "(" + rendered + ")"
		}
	}
	if k.Desc {
		rendered += " DESC"
	}
	return rendered, nil
}

func indexMethod(def index.Definition, d Dialect) string {
	if d == SQLite {
		return ""
	}
	if def.Method() != "" {
		return strings.ToUpper(def.Method())
	}
	if def.IsInverted() && d == Postgres {
		return "GIN"
	}
	return ""
}

func sqliteSupports(def index.Definition) error {
	var unsupported []string
	if def.IsConcurrent() {
		unsupported = append(unsupported, "concurrently")
	}
	if def.IsInverted() {
		unsupported = append(unsupported, "inverted")
	}
	if m := strings.ToLower(def.Method()); m != "" && m != "btree" {
		unsupported = append(unsupported, "using "+m)
	}
	if len(def.StoringColumns()) > 0 {
		unsupported = append(unsupported, "storing")
	}
	if len(def.Params()) > 0 {
		unsupported = append(unsupported, "with")
	}
	if def.Partition() != "" {
		unsupported = append(unsupported, "partition by")
	}
	if len(unsupported) > 0 {
		return sqlerr.NewInvalidDefinition("sqlite index %q does not support %s", def.Name(), strings.Join(unsupported, ", "))
	}
	return nil
}
