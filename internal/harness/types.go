package harness

import (
	"github.com/roach88/typesql/internal/narrow"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: the narrowing evaluator accepted the
	// rows and every assertion held.
	Pass bool `json:"pass"`

	// SQL is the statement that ran, with ? placeholders.
	SQL string `json:"sql"`

	// Params are the bound parameter values, in placeholder order.
	Params []any `json:"params"`

	// Rows are the decoded result rows.
	Rows []narrow.Row `json:"rows"`

	// Context explains why narrowing failed. Nil when it passed.
	Context *narrow.Context `json:"context,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Params: []any{},
		Rows:   []narrow.Row{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
