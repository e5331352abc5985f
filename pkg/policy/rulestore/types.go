package rulestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
)

// Backend stores policy rules and detection rules. It satisfies both
// engine.RuleSource and detection.Source. All methods are safe for
// concurrent use.
type Backend interface {
	// ListWorkspaces returns every workspace that owns policy or detection
	// rules, sorted.
	ListWorkspaces(ctx context.Context) ([]string, error)

	// ListPolicyRules returns all policy rules of a workspace sorted by name.
	ListPolicyRules(ctx context.Context, workspaceID string) ([]*policy.PolicyRule, error)

	// ListDetectionRules returns all detection rules of a workspace sorted by id.
	ListDetectionRules(ctx context.Context, workspaceID string) ([]*detection.Rule, error)

	// SavePolicyRule inserts or replaces a policy rule. Names are unique per
	// workspace: saving a rule whose name is taken replaces that rule.
	SavePolicyRule(ctx context.Context, rule *policy.PolicyRule) error

	// SaveDetectionRule inserts or replaces a detection rule by id.
	SaveDetectionRule(ctx context.Context, rule *detection.Rule) error

	// DeletePolicyRule removes a policy rule. Returns ErrNotFound if absent.
	DeletePolicyRule(ctx context.Context, workspaceID, ruleID string) error

	// Close releases backend resources.
	Close() error
}

var (
	// ErrNotFound indicates the requested rule does not exist.
	ErrNotFound = errors.New("rule not found")

	// ErrInvalidRule indicates a rule missing required identity fields.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("rule store closed")
)

// StorageError wraps a backend failure with the operation that caused it.
type StorageError struct {
	Op    string
	Cause error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("rule store %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func validatePolicyRule(r *policy.PolicyRule) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil policy rule", ErrInvalidRule)
	case r.WorkspaceID == "":
		return fmt.Errorf("%w: workspace id is required", ErrInvalidRule)
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	case !r.RuleType.Valid():
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, r.RuleType)
	case !r.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, r.Action)
	}
	return nil
}

func validateDetectionRule(r *detection.Rule) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil detection rule", ErrInvalidRule)
	case r.ID == "":
		return fmt.Errorf("%w: detection rule id is required", ErrInvalidRule)
	case r.WorkspaceID == "":
		return fmt.Errorf("%w: workspace id is required", ErrInvalidRule)
	}
	return nil
}
