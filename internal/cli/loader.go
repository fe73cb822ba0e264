package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/typesql/internal/harness"
	"github.com/roach88/typesql/internal/schema"
	"github.com/roach88/typesql/internal/sqlerr"
)

// LoadError represents an error that occurred while loading a schema or
// scenario, or while building its query.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads declared tables from a CUE file or directory.
func LoadSchema(path string) (*schema.Schema, *LoadError) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}

	if info.IsDir() {
		files, err := schema.FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	sch, err := harness.LoadSchema(path)
	if err != nil {
		return nil, classifyError(err, ErrCodeLoadFailed)
	}
	return sch, nil
}

// LoadScenario loads one scenario file.
func LoadScenario(path string) (*harness.Scenario, *LoadError) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path)}
	}
	sc, err := harness.LoadScenario(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidScenario, Message: err.Error()}
	}
	return sc, nil
}

// classifyError converts an error to a LoadError, keeping the CUE position
// of schema errors and the category of query errors. fallback is used when
// neither applies.
func classifyError(err error, fallback string) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeSchema,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var queryErr *sqlerr.Error
	if errors.As(err, &queryErr) {
		return &LoadError{Code: MapQueryErrorCode(queryErr.Code), Message: err.Error()}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}
