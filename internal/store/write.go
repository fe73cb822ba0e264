package store

import (
	"context"
	"fmt"

	"github.com/roach88/typesql/internal/index"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/querysql"
	"github.com/roach88/typesql/internal/sqltext"
)

var sqlite = querysql.NewSQLCompiler(querysql.SQLite)

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, stmt sqltext.Text) error {
	query := stmt.QueryFor(sqltext.Question)
	params := stmt.Parameters()
	s.logger.Debug("exec", "sql", query, "params", len(params))

	if _, err := s.db.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}

// ExecRaw runs trusted SQL, such as scenario setup statements.
func (s *Store) ExecRaw(ctx context.Context, query string) error {
	return s.Exec(ctx, sqltext.Raw(query))
}

// CreateTables creates each declared table.
func (s *Store) CreateTables(ctx context.Context, tables ...queryir.Table) error {
	for _, t := range tables {
		ddl, err := sqlite.CompileTable(t)
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		if err := s.ExecRaw(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// ApplyIndexes creates each index. Definitions SQLite cannot express fail
// with INVALID_DEFINITION before anything is executed.
func (s *Store) ApplyIndexes(ctx context.Context, defs ...index.Definition) error {
	stmts := make([]string, len(defs))
	for i, def := range defs {
		ddl, err := sqlite.CompileIndex(def)
		if err != nil {
			return fmt.Errorf("index %s: %w", def.Name(), err)
		}
		stmts[i] = ddl
	}
	for _, ddl := range stmts {
		if err := s.ExecRaw(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// Insert writes fixture rows into table. Row keys must be declared
// columns; values are converted by column domain.
func (s *Store) Insert(ctx context.Context, table queryir.Table, rows ...map[string]any) error {
	for i, row := range rows {
		stmt, err := insertStatement(table, row)
		if err != nil {
			return fmt.Errorf("insert into %s, row %d: %w", table.Name, i, err)
		}
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("insert into %s, row %d: %w", table.Name, i, err)
		}
	}
	return nil
}

func insertStatement(table queryir.Table, row map[string]any) (sqltext.Text, error) {
	for name := range row {
		if _, ok := table.Column(name); !ok {
			return sqltext.Text{}, fmt.Errorf("unknown column %q", name)
		}
	}
	if len(row) == 0 {
		return sqltext.Text{}, fmt.Errorf("row has no columns")
	}

	var cols, values []sqltext.Text
	for _, col := range table.Columns {
		v, present := row[col.Name]
		if !present {
			continue
		}
		stored, err := marshalColumn(v, col.Type)
		if err != nil {
			return sqltext.Text{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		cols = append(cols, sqltext.Identifier(col.Name))
		values = append(values, sqltext.Param(stored))
	}
	sep := sqltext.Raw(", ")
	return sqltext.Format("INSERT INTO %v (%v) VALUES (%v)",
		sqltext.Identifier(table.Name),
		sqltext.Join(cols, sep),
		sqltext.Join(values, sep),
	), nil
}
