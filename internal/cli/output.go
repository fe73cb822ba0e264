package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/typesql/internal/sqlerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every scenario verified, or the command produced its output
	ExitFailure      = 1 // narrowing, assertion or golden mismatch
	ExitCommandError = 2 // bad paths, schema errors, query construction errors
)

// Error codes reported in CLIError.Code. The leading digit after "E" is the
// category: E0xx input and output, E10x query construction, E11x schema
// declarations, E12x verification.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeScanError       = "E002" // directory scan failed
	ErrCodeNoFiles         = "E003" // no CUE files in a schema directory
	ErrCodeLoadFailed      = "E004"
	ErrCodeNotFound        = "E005"
	ErrCodeInvalidScenario = "E006" // scenario YAML malformed or incomplete
	ErrCodeWriteFailed     = "E007"

	ErrCodeTypeMismatch      = "E101"
	ErrCodeCoercion          = "E102"
	ErrCodeClauseOrder       = "E103"
	ErrCodeUnsupportedNode   = "E104"
	ErrCodeUnresolved        = "E105"
	ErrCodeInvalidDefinition = "E106"

	ErrCodeSchema = "E110"

	ErrCodeVerifyFailed = "E120"
)

var queryErrorCodes = map[sqlerr.Code]string{
	sqlerr.CodeTypeMismatch:        ErrCodeTypeMismatch,
	sqlerr.CodeUnsupportedCoercion: ErrCodeCoercion,
	sqlerr.CodeIllegalClauseOrder:  ErrCodeClauseOrder,
	sqlerr.CodeUnsupportedNode:     ErrCodeUnsupportedNode,
	sqlerr.CodeUnresolvedReference: ErrCodeUnresolved,
	sqlerr.CodeInvalidDefinition:   ErrCodeInvalidDefinition,
}

// MapQueryErrorCode maps a query error code to its E10x code.
func MapQueryErrorCode(code sqlerr.Code) string {
	if c, ok := queryErrorCodes[code]; ok {
		return c
	}
	return ErrCodeGeneric
}

// ErrorCategory names the category of an error code: "io", "query",
// "schema" or "verify".
func ErrorCategory(code string) string {
	switch {
	case strings.HasPrefix(code, "E10"):
		return "query"
	case strings.HasPrefix(code, "E11"):
		return "schema"
	case strings.HasPrefix(code, "E12"):
		return "verify"
	}
	return "io"
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error: ExitSuccess for nil,
// the carried code for an ExitError, ExitFailure otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error member of CLIResponse.
type CLIError struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Position string `json:"position,omitempty"` // file:line:col of a schema error
	Details  any    `json:"details,omitempty"`
}

// NewCLIError builds a CLIError with the category derived from code.
func NewCLIError(code, message string, details any) *CLIError {
	return &CLIError{Code: code, Category: ErrorCategory(code), Message: message, Details: details}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.writeError(NewCLIError(code, message, details))
}

func (f *OutputFormatter) writeError(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: e})
	}

	if e.Position != "" {
		fmt.Fprintln(f.Writer, e.Position)
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// Fail reports a load, schema or query error and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(loadErr *LoadError) error {
	e := NewCLIError(loadErr.Code, loadErr.Message, nil)
	if loadErr.Pos.IsValid() {
		e.Position = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	_ = f.writeError(e)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message), nil)
}

// VerboseLog outputs a message only if verbose mode is enabled. It always
// goes to the diagnostic writer so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
