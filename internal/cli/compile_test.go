package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileScenario_Postgres(t *testing.T) {
	out, err := runCommand(t, "compile", filepath.Join(testScenarios, "active_users.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "-- active_users (postgres)")
	assert.Contains(t, out, `WHERE "u"."status" = $1`)
	assert.Contains(t, out, "Parameters:")
	assert.Contains(t, out, `1: "active"`)
}

func TestCompileScenario_SQLiteJSON(t *testing.T) {
	out, err := runCommand(t, "--format", "json", "--dialect", "sqlite", "compile", filepath.Join(testScenarios, "users_with_orders.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "users_with_orders", resp.Data.Scenario)
	assert.Equal(t, "sqlite", resp.Data.Dialect)
	assert.Contains(t, resp.Data.SQL, "json_object(")
	assert.Contains(t, resp.Data.SQL, `LEFT JOIN "orders" AS "o"`)
	assert.Empty(t, resp.Data.Params)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "query.sql")

	out, err := runCommand(t, "compile", filepath.Join(testScenarios, "status_counts.yaml"), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote SQL to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `GROUP BY "u"."status"`)
	assert.Contains(t, string(data), `COUNT(*) AS "n"`)
}

func TestCompileMissingScenario(t *testing.T) {
	out, err := runCommand(t, "compile", "/nonexistent/scenario.yaml")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.Contains(t, out, "scenario not found")
}

func TestCompileQueryErrors(t *testing.T) {
	dir := t.TempDir()
	schemaPath, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "schema.cue"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{
			name:     "unknown column",
			query:    "query: { from: users, select: [u.email] }",
			wantCode: ErrCodeUnresolved,
		},
		{
			name:     "type mismatch",
			query:    "query:\n  from: users\n  where: [{ column: u.id, op: \"=\", ref: u.status }]",
			wantCode: ErrCodeTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			content := "name: bad\ndescription: bad\nschema: " + schemaPath + "\n" + tt.query + "\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			out, err := runCommand(t, "--format", "json", "compile", path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileInvalidScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: x\nschema: s.cue\nqurey: {}\n"), 0644))

	out, err := runCommand(t, "compile", path)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, "failed to parse YAML")
}
