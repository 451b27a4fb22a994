package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEngine is returned by Compile for an unrecognised engine name.
	ErrUnknownEngine = errors.New("rules: unknown engine")
	// ErrEmptySource is wrapped when a formula is blank.
	ErrEmptySource = errors.New("formula must not be empty")
)

// Phases reported by EvaluationError.
const (
	PhaseCompile = "compile"
	PhaseEval    = "eval"
)

// EvaluationError ties an engine failure to the formula that caused it.
type EvaluationError struct {
	Engine string
	Source string
	Phase  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("rules: %s %s: %v", e.Engine, e.Phase, e.Err)
	}
	return fmt.Sprintf("rules: %s %s %q: %v", e.Engine, e.Phase, e.Source, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
