package engine

import (
	"errors"
	"fmt"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid orchestrator configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrInvalidEvent indicates an event that cannot be evaluated at all.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrTooManyRules indicates a workspace with more enabled rules than
	// MaxRulesPerWorkspace. The reload is rejected.
	ErrTooManyRules = errors.New("too many rules in workspace")

	// ErrEvaluatorPanic indicates an evaluator panicked.
	ErrEvaluatorPanic = errors.New("evaluator panicked")
)

// EvaluationError records an unexpected failure inside an evaluator. It is
// logged, never returned to callers of Evaluate.
type EvaluationError struct {
	WorkspaceID string
	RuleID      string
	RuleType    policy.RuleType
	Cause       error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("workspace %s rule %s (%s): %v", e.WorkspaceID, e.RuleID, e.RuleType, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// ReloadError indicates a rule reload failure.
type ReloadError struct {
	WorkspaceID string
	Cause       error
}

// Error returns the error message.
func (e *ReloadError) Error() string {
	if e.WorkspaceID == "" {
		return fmt.Sprintf("rule reload failed: %v", e.Cause)
	}
	return fmt.Sprintf("rule reload failed for workspace %q: %v", e.WorkspaceID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}
