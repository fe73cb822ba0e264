package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/typesql/internal/querysql"
	"github.com/roach88/typesql/internal/schema"
	"github.com/roach88/typesql/internal/sqlerr"
)

// DDLResult holds the statements that create a declared schema.
type DDLResult struct {
	Dialect    string         `json:"dialect"`
	Statements []string       `json:"statements"`
	Skipped    []SkippedIndex `json:"skipped,omitempty"`
}

// SkippedIndex is an index the dialect cannot express.
type SkippedIndex struct {
	Index  string `json:"index"`
	Reason string `json:"reason"`
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl <schema>",
		Short: "Print CREATE TABLE and CREATE INDEX statements",
		Long: `Print the DDL for the tables and indexes declared in a CUE schema file
or directory.

Index options the dialect cannot express (covering columns or GIN in
SQLite, partitions in Postgres) are reported and skipped.

Examples:
  typesql ddl ./schema
  typesql ddl ./schema/users.cue --dialect sqlite`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDDL(opts *RootOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sch, loadErr := LoadSchema(schemaPath)
	if loadErr != nil {
		return formatter.Fail(loadErr)
	}
	formatter.VerboseLog("Loaded %d table(s), %d index(es) from %s", len(sch.Tables), len(sch.Indexes), schemaPath)

	d := opts.dialect()
	result, err := compileDDL(sch, d)
	if err != nil {
		return formatter.Fail(classifyError(err, ErrCodeGeneric))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "-- %s\n", result.Dialect)
	for _, stmt := range result.Statements {
		fmt.Fprintf(w, "%s;\n", stmt)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "-- skipped %s: %s\n", s.Index, s.Reason)
	}
	return nil
}

// compileDDL renders each table followed by its indexes, in declaration
// order. Indexes rejected as INVALID_DEFINITION are skipped; any other
// error aborts.
func compileDDL(sch *schema.Schema, d querysql.Dialect) (*DDLResult, error) {
	compiler := querysql.NewSQLCompiler(d)
	result := &DDLResult{Dialect: d.String(), Statements: []string{}}

	for _, table := range sch.Tables {
		stmt, err := compiler.CompileTable(table)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table.Name, err)
		}
		result.Statements = append(result.Statements, stmt)

		for _, def := range sch.IndexesOn(table.Name) {
			stmt, err := compiler.CompileIndex(def)
			if sqlerr.IsInvalidDefinition(err) {
				result.Skipped = append(result.Skipped, SkippedIndex{Index: def.Name(), Reason: err.Error()})
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", def.Name(), err)
			}
			result.Statements = append(result.Statements, stmt)
		}
	}
	return result, nil
}
