package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/typesql/internal/datatype"
	"github.com/roach88/typesql/internal/narrow"
	"github.com/roach88/typesql/internal/queryir"
	"github.com/roach88/typesql/internal/sqltext"
)

// Select compiles q for SQLite, runs it and decodes the result rows.
func (s *Store) Select(ctx context.Context, q *queryir.Select) ([]narrow.Row, error) {
	stmt, err := sqlite.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, stmt, outputTypes(q))
}

// Query runs stmt and decodes each row keyed by column name. types maps
// output names to their domains; a listed column is converted with
// narrow.Normalize, so whole-row and json columns arrive as decoded
// objects instead of JSON text. Unlisted columns keep the driver's value
// with []byte turned into string.
func (s *Store) Query(ctx context.Context, stmt sqltext.Text, types map[string]datatype.Type) ([]narrow.Row, error) {
	query := stmt.QueryFor(sqltext.Question)
	params := stmt.Parameters()
	s.logger.Debug("query", "sql", query, "params", len(params))

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, types)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	s.logger.Debug("query done", "rows", len(out))
	return out, nil
}

func scanRows(rows *sql.Rows, types map[string]datatype.Type) ([]narrow.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []narrow.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(narrow.Row, len(columns))
		for i, name := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if t, ok := types[name]; ok {
				v = narrow.Normalize(v, t)
			}
			row[name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// outputTypes maps the output names of q's projection to their domains.
func outputTypes(q *queryir.Select) map[string]datatype.Type {
	types := map[string]datatype.Type{}
	for _, item := range q.Projection() {
		if name := item.OutputName(); name != "" {
			types[name] = item.Expr.DataType()
		}
	}
	return types
}
