package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/typesql/internal/index"
	"github.com/roach88/typesql/internal/narrow"
	"github.com/roach88/typesql/internal/querysql"
	"github.com/roach88/typesql/internal/schema"
	"github.com/roach88/typesql/internal/sqlerr"
	"github.com/roach88/typesql/internal/sqltext"
	"github.com/roach88/typesql/internal/store"
)

// Harness is the scenario execution engine.
type Harness struct {
	logger *slog.Logger
}

// New creates a harness that logs to logger. A nil logger discards.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a discarding logger.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New(nil).Run(ctx, scenario)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the declared schema and build the query
// 2. Create tables and indexes in a fresh in-memory database
// 3. Insert fixtures and execute setup statements
// 4. Run the query and narrow its rows
// 5. Evaluate assertions
//
// An error is returned when the scenario cannot run at all. A query that
// runs but fails verification yields a failing Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	sch, err := LoadSchema(scenario.Schema)
	if err != nil {
		return nil, err
	}

	b, err := BuildQuery(scenario, sch)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	q := b.Build()
	stmt, err := querysql.NewSQLCompiler(querysql.SQLite).CompileSelect(q)
	if err != nil {
		return nil, fmt.Errorf("failed to compile query: %w", err)
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	st.SetLogger(h.logger)

	if err := h.prepare(ctx, st, sch, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	result.SQL = stmt.QueryFor(sqltext.Question)
	result.Params = append(result.Params, stmt.Parameters()...)

	rows, err := st.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	result.Rows = rows

	verdict, err := narrow.Evaluate(q, rows, b.Verification(), narrow.WithCaseInsensitiveLike())
	if err != nil {
		return nil, fmt.Errorf("failed to narrow rows: %w", err)
	}
	if !verdict.Passed {
		result.Context = verdict.Context
		result.AddError(fmt.Sprintf("narrowing failed: %s", verdict.Context))
	}

	actx := &AssertionContext{Store: st, Schema: sch, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"rows", len(rows),
		"pass", result.Pass,
	)
	return result, nil
}

// Compile builds the scenario query and compiles it for dialect d without
// running anything.
func Compile(scenario *Scenario, d querysql.Dialect) (sqltext.Text, error) {
	sch, err := LoadSchema(scenario.Schema)
	if err != nil {
		return sqltext.Text{}, err
	}
	b, err := BuildQuery(scenario, sch)
	if err != nil {
		return sqltext.Text{}, fmt.Errorf("failed to build query: %w", err)
	}
	return b.SQL(d)
}

// LoadSchema loads a CUE schema from a file or a directory.
func LoadSchema(path string) (*schema.Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	var sch *schema.Schema
	if info.IsDir() {
		sch, err = schema.Load(path)
	} else {
		sch, err = schema.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return sch, nil
}

// sqliteIndexes drops definitions only other dialects can express, such as
// covering or inverted indexes.
func (h *Harness) sqliteIndexes(defs []index.Definition) []index.Definition {
	compiler := querysql.NewSQLCompiler(querysql.SQLite)
	out := make([]index.Definition, 0, len(defs))
	for _, def := range defs {
		if _, err := compiler.CompileIndex(def); sqlerr.IsInvalidDefinition(err) {
			h.logger.Info("index skipped", "index", def.Name(), "reason", err)
			continue
		}
		out = append(out, def)
	}
	return out
}

// prepare creates the declared tables and indexes, inserts fixtures, then
// runs setup statements.
func (h *Harness) prepare(ctx context.Context, st *store.Store, sch *schema.Schema, scenario *Scenario) error {
	if err := st.CreateTables(ctx, sch.Tables...); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := st.ApplyIndexes(ctx, h.sqliteIndexes(sch.Indexes)...); err != nil {
		return fmt.Errorf("failed to apply indexes: %w", err)
	}

	for name := range scenario.Fixtures {
		if _, ok := sch.Table(name); !ok {
			return fmt.Errorf("fixtures: unknown table %q", name)
		}
	}
	// schema order, so rows referencing earlier tables insert cleanly
	for _, table := range sch.Tables {
		keys := []string{table.Name}
		if table.Alias != "" && table.Alias != table.Name {
			keys = append(keys, table.Alias)
		}
		for _, key := range keys {
			rows, ok := scenario.Fixtures[key]
			if !ok {
				continue
			}
			if err := st.Insert(ctx, table, rows...); err != nil {
				return fmt.Errorf("fixtures: %w", err)
			}
			h.logger.Debug("fixtures inserted", "table", table.Name, "rows", len(rows))
		}
	}

	for i, stmt := range scenario.Setup {
		if err := st.ExecRaw(ctx, stmt); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		h.logger.Debug("setup step completed", "step", i)
	}
	return nil
}
