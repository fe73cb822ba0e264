package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/typesql/internal/canonical"
	"github.com/roach88/typesql/internal/harness"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is a scenario query compiled for one dialect.
type CompilationResult struct {
	Scenario string `json:"scenario"`
	Dialect  string `json:"dialect"`
	SQL      string `json:"sql"`
	Params   []any  `json:"params"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scenario.yaml>",
		Short: "Compile a scenario query to SQL",
		Long: `Compile the query of a verification scenario to SQL.

The query is built through the typed builder against the scenario's
declared schema, so unknown columns, type mismatches and clause order
violations are reported before any SQL is produced. Nothing is executed.

Examples:
  typesql compile ./scenarios/active_users.yaml
  typesql compile ./scenarios/active_users.yaml --dialect sqlite
  typesql compile ./scenarios/active_users.yaml -o query.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL to this file")

	return cmd
}

func runCompile(opts *CompileOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenario, loadErr := LoadScenario(scenarioFile)
	if loadErr != nil {
		return formatter.Fail(loadErr)
	}
	formatter.VerboseLog("Loaded scenario %s (schema %s)", scenario.Name, scenario.Schema)

	d := opts.dialect()
	stmt, err := harness.Compile(scenario, d)
	if err != nil {
		return formatter.Fail(classifyError(err, ErrCodeGeneric))
	}

	result := &CompilationResult{
		Scenario: scenario.Name,
		Dialect:  d.String(),
		SQL:      stmt.QueryFor(d.Placeholders()),
		Params:   append([]any{}, stmt.Parameters()...),
	}
	formatter.VerboseLog("Compiled %s with %d parameter(s)", result.Dialect, len(result.Params))

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.SQL+"\n"), 0644); err != nil {
			return formatter.Fail(&LoadError{
				Code:    ErrCodeWriteFailed,
				Message: fmt.Sprintf("writing output file: %v", err),
			})
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs the compiled statement.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "-- %s (%s)\n", result.Scenario, result.Dialect)
	fmt.Fprintln(w, result.SQL)

	if len(result.Params) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Parameters:")
		for i, p := range result.Params {
			fmt.Fprintf(w, "  %d: %s\n", i+1, formatParam(p))
		}
	}

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote SQL to %s\n", outputFile)
	}
	return nil
}

// formatParam renders a bound value as canonical JSON.
func formatParam(v any) string {
	b, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
