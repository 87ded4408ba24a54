// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrBudgetExceeded  = errors.New("daily budget exceeded")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrUnknownEngine   = errors.New("unknown engine type")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrEmptyResponse   = errors.New("empty model response")
)

// BudgetError reports a projected token usage above the daily budget.
// It is raised before any network attempt and is never retried.
type BudgetError struct {
	ProjectedTokens int
	UsedTokens      int
	DailyLimit      int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("daily budget exceeded: projected %d tokens (used %d, limit %d)",
		e.ProjectedTokens, e.UsedTokens, e.DailyLimit)
}

func (e *BudgetError) Unwrap() error {
	return ErrBudgetExceeded
}

// NewBudgetError creates a new BudgetError.
func NewBudgetError(projected, used, limit int) *BudgetError {
	return &BudgetError{
		ProjectedTokens: projected,
		UsedTokens:      used,
		DailyLimit:      limit,
	}
}

// ProviderError represents a model provider failure after retries were
// exhausted. The original cause is preserved in Err.
type ProviderError struct {
	Model    string
	Caller   string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s] caller=%s after %d attempts: %v",
		e.Model, e.Caller, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(model, caller string, attempts int, err error) *ProviderError {
	return &ProviderError{
		Model:    model,
		Caller:   caller,
		Attempts: attempts,
		Err:      err,
	}
}

// SchemaError represents a model response that failed schema validation.
type SchemaError struct {
	Agent   string
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error [%s]: %s: %v", e.Agent, e.Message, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(agent, message string, err error) *SchemaError {
	return &SchemaError{
		Agent:   agent,
		Message: message,
		Err:     err,
	}
}

// StageError represents a failure inside one pipeline stage. It aborts the
// run; results from earlier stages are preserved.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage error [%s]: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage string, err error) *StageError {
	return &StageError{
		Stage: stage,
		Err:   err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
