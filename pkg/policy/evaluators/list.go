package evaluators

import (
	"context"
	"log/slog"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// ListMatch compares one event field against a blocklist or allowlist.
//
//	list type   field value      list      result
//	blocklist   absent           any       pass
//	blocklist   present          any       violation iff value listed
//	allowlist   absent           any       violation
//	allowlist   present          empty     violation
//	allowlist   present          nonempty  violation iff value not listed
type ListMatch struct {
	logger *slog.Logger
}

// NewListMatch creates the evaluator.
func NewListMatch(logger *slog.Logger) *ListMatch {
	return &ListMatch{logger: defaultLogger(logger, "evaluator.list_match")}
}

// Evaluate implements Evaluator. The detail never carries the field value.
func (l *ListMatch) Evaluate(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) Result {
	cfg, ok := rule.Config.(policy.ListMatchConfig)
	if !ok {
		l.logger.WarnContext(ctx, "rule config is not a list_match config", ruleAttrs(event, rule)...)
		return skipped("invalid_config")
	}

	value, present := cfg.Field.Extract(event)

	detail := func(reason string) map[string]any {
		return map[string]any{
			"list_type": string(cfg.ListType),
			"field":     string(cfg.Field),
			"reason":    reason,
		}
	}

	switch cfg.ListType {
	case policy.ListTypeBlocklist:
		if present && cfg.Contains(value) {
			return violation(detail("value_blocklisted"))
		}
		return Result{Status: StatusPass}

	case policy.ListTypeAllowlist:
		switch {
		case !present:
			return violation(detail("field_missing"))
		case len(cfg.Values) == 0:
			return violation(detail("allowlist_empty"))
		case !cfg.Contains(value):
			return violation(detail("value_not_allowlisted"))
		}
		return Result{Status: StatusPass}

	default:
		l.logger.WarnContext(ctx, "unrecognized list type",
			append(ruleAttrs(event, rule), "list_type", cfg.ListType)...)
		return skipped("invalid_config")
	}
}
