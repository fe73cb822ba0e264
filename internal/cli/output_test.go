package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typesql/internal/sqlerr"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(CompilationResult{Scenario: "s", Dialect: "sqlite", SQL: "SELECT 1", Params: []any{}}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", data["sql"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"alias": "x", "column": "id"}
	require.NoError(t, formatter.Error(ErrCodeUnresolved, "unresolved reference", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E105", resp.Error.Code)
	assert.Equal(t, "unresolved reference", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "compilation failed", map[string]string{"file": "schema.cue"}))
			assert.Contains(t, buf.String(), "Error [E001]: compilation failed")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details:")))
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Loaded %d table(s)", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "Loaded 2 table(s)\n", errOut.String())

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("hidden")
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "2 scenario(s) failed", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "2 scenario(s) failed: inner")
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{ErrCodeNotFound, "io"},
		{ErrCodeWriteFailed, "io"},
		{ErrCodeTypeMismatch, "query"},
		{ErrCodeInvalidDefinition, "query"},
		{ErrCodeSchema, "schema"},
		{ErrCodeVerifyFailed, "verify"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCategory(tt.code))
		})
	}
}

func TestMapQueryErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeClauseOrder, MapQueryErrorCode(sqlerr.CodeIllegalClauseOrder))
	assert.Equal(t, ErrCodeUnresolved, MapQueryErrorCode(sqlerr.CodeUnresolvedReference))
	assert.Equal(t, ErrCodeGeneric, MapQueryErrorCode(sqlerr.Code("SOMETHING_ELSE")))
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(&LoadError{Code: ErrCodeCoercion, Message: "cannot coerce"})
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E102: cannot coerce")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "query", resp.Error.Category)
	assert.Empty(t, resp.Error.Position)

	buf.Reset()
	text := &OutputFormatter{Format: "text", Writer: buf}
	_ = text.Fail(&LoadError{Code: ErrCodeNotFound, Message: "schema not found: x"})
	assert.Equal(t, "Error [E005]: schema not found: x\n", buf.String())
}
