package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/typesql/internal/canonical"
)

// Snapshot renders the parts of a result that golden files pin down: the
// compiled statement, its parameters, the decoded rows and the narrowing
// outcome. Output is canonical JSON, so equal results give equal bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	rows := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = map[string]any(row)
	}

	snapshot := map[string]any{
		"scenario_name": scenarioName,
		"sql":           result.SQL,
		"params":        result.Params,
		"rows":          rows,
		"pass":          result.Pass,
	}
	if result.Context != nil {
		snapshot["context"] = result.Context
	}
	return canonical.Marshal(snapshot)
}

// RunWithGolden executes a scenario and compares the snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
