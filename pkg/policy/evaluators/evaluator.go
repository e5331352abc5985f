package evaluators

import (
	"context"
	"log/slog"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// Status is the per-rule outcome reported by an evaluator.
type Status string

const (
	StatusNoMatch     Status = "no_match"
	StatusWithinLimit Status = "within_limit"
	StatusPass        Status = "pass"
	StatusViolation   Status = "violation"

	// StatusSkipped marks a rule that could not be evaluated (bad config,
	// missing infrastructure). It never contributes to the verdict.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of evaluating one rule against one event.
type Result struct {
	Status Status

	// Detail holds audit evidence. It must not contain raw event content.
	Detail map[string]any
}

// Violated reports whether the rule was violated.
func (r Result) Violated() bool {
	return r.Status == StatusViolation
}

// Evaluator decides pass or violation for one rule type. Implementations are
// safe for concurrent use and never return errors: every failure degrades to
// a non-violating result with a logged warning.
type Evaluator interface {
	Evaluate(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) Result
}

func violation(detail map[string]any) Result {
	return Result{Status: StatusViolation, Detail: detail}
}

func skipped(reason string) Result {
	return Result{Status: StatusSkipped, Detail: map[string]any{"reason": reason}}
}

func ruleAttrs(event *policy.Event, rule *policy.CompiledRule) []any {
	return []any{
		"workspace_id", event.WorkspaceID,
		"rule_id", rule.ID,
		"rule_name", rule.Name,
	}
}

func defaultLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}
