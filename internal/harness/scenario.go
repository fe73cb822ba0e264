package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typesql/internal/expr"
)

// Scenario defines a verification scenario: a declared schema, the rows a
// fresh database starts with, one query, and what its result must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE file or directory declaring the tables.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Fixtures are rows inserted per table, keyed by table name or alias.
	Fixtures map[string][]map[string]any `yaml:"fixtures,omitempty"`

	// Setup holds SQL statements run after the fixtures are inserted.
	Setup []string `yaml:"setup,omitempty"`

	// Query is the statement under test.
	Query QueryStep `yaml:"query"`

	// Expect is the verification payload handed to the narrowing evaluator.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the returned rows and the database afterwards.
	// Supported types: rows_contain, row_order, row_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep declares a SELECT. Columns are written alias.column; a bare
// name refers to the FROM entity, or in select lists to a whole entity.
type QueryStep struct {
	From    string           `yaml:"from"`
	As      string           `yaml:"as,omitempty"`
	Joins   []JoinStep       `yaml:"joins,omitempty"`
	Where   []expr.Condition `yaml:"where,omitempty"`
	Select  []SelectStep     `yaml:"select,omitempty"`
	GroupBy []string         `yaml:"group_by,omitempty"`
	OrderBy []OrderStep      `yaml:"order_by,omitempty"`
	Limit   *int64           `yaml:"limit,omitempty"`
	Offset  *int64           `yaml:"offset,omitempty"`
}

// JoinStep adds one joined entity.
type JoinStep struct {
	Table string         `yaml:"table"`
	As    string         `yaml:"as,omitempty"`
	Kind  string         `yaml:"kind,omitempty"` // inner (default) or left
	On    expr.Condition `yaml:"on"`
}

// SelectStep is one select item. It may be written as a plain string.
type SelectStep struct {
	Column    string   `yaml:"column,omitempty"`
	Path      []string `yaml:"path,omitempty"`
	Text      bool     `yaml:"text,omitempty"`
	Aggregate string   `yaml:"aggregate,omitempty"`
	As        string   `yaml:"as,omitempty"`
}

// UnmarshalYAML accepts "u.id" as shorthand for {column: u.id}.
func (s *SelectStep) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		return n.Decode(&s.Column)
	}
	type plain SelectStep
	return decodeStrict(n, (*plain)(s))
}

// OrderStep is one ORDER BY item. It may be written as a plain string.
type OrderStep struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc,omitempty"`
}

// UnmarshalYAML accepts "u.id" as shorthand for {column: u.id}.
func (o *OrderStep) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		return n.Decode(&o.Column)
	}
	type plain OrderStep
	return decodeStrict(n, (*plain)(o))
}

// ExpectClause asserts the row count and a predicate every row satisfies.
// Narrow conditions are combined with AND.
type ExpectClause struct {
	Length *int             `yaml:"length,omitempty"`
	Narrow []expr.Condition `yaml:"narrow,omitempty"`
}

// Assertion validates the result rows or final table state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows_contain": some result row matches Row
	// - "row_order": Column takes Values in this order
	// - "row_count": exactly Count rows match Row
	// - "final_state": exactly one row of Table matching Where has Expect
	Type string `yaml:"type"`

	// Row is a subset match against a result row. Nested objects, such as
	// whole-row projections, are matched as subsets too.
	Row map[string]any `yaml:"row,omitempty"`

	// Column names an output column, or alias.column inside a whole row.
	Column string `yaml:"column,omitempty"`

	// Values is the expected order of Column values (used by row_order).
	Values []any `yaml:"values,omitempty"`

	// Count is the expected number of matching rows (used by row_count).
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect drive final_state.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRowsContain = "rows_contain"
	AssertRowOrder    = "row_order"
	AssertRowCount    = "row_count"
	AssertFinalState  = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The schema path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if _, err := os.Stat(scenario.Schema); err != nil {
		return nil, fmt.Errorf("invalid scenario: schema not found: %s", scenario.Schema)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. The schema path is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// decodeStrict decodes n rejecting unknown fields. Node.Decode does not
// inherit KnownFields from the outer decoder.
func decodeStrict(n *yaml.Node, out any) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if s.Query.From == "" {
		return fmt.Errorf("query.from is required")
	}

	for i, stmt := range s.Setup {
		if strings.TrimSpace(stmt) == "" {
			return fmt.Errorf("setup[%d]: statement is empty", i)
		}
	}

	for i, j := range s.Query.Joins {
		if j.Table == "" {
			return fmt.Errorf("query.joins[%d]: table is required", i)
		}
		switch strings.ToLower(j.Kind) {
		case "", "inner", "left":
		default:
			return fmt.Errorf("query.joins[%d]: unknown join kind %q", i, j.Kind)
		}
	}

	for i, item := range s.Query.Select {
		if item.Column == "" && item.Aggregate == "" {
			return fmt.Errorf("query.select[%d]: column or aggregate is required", i)
		}
		if item.Aggregate != "" {
			if _, ok := aggregates[strings.ToLower(item.Aggregate)]; !ok {
				return fmt.Errorf("query.select[%d]: unknown aggregate %q", i, item.Aggregate)
			}
		}
	}

	for i, o := range s.Query.OrderBy {
		if o.Column == "" {
			return fmt.Errorf("query.order_by[%d]: column is required", i)
		}
	}

	if s.Query.Limit == nil && s.Query.Offset != nil {
		return fmt.Errorf("query.offset requires query.limit")
	}

	if s.Expect != nil && s.Expect.Length != nil && *s.Expect.Length < 0 {
		return fmt.Errorf("expect.length must be non-negative")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowsContain:
		if len(a.Row) == 0 {
			return fmt.Errorf("assertions[%d]: row is required for rows_contain", index)
		}
	case AssertRowOrder:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for row_order", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values list is required for row_order", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
