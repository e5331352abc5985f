package engine

import (
	"log/slog"

	"github.com/obutuz/swarmshield-sub004/pkg/limits/counter"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/evaluators"
)

// StandardEvaluators returns options registering the four built-in
// evaluators. store may be nil, in which case rate limiting fails open.
func StandardEvaluators(rules evaluators.RuleProvider, store counter.Store, clock counter.Clock, logger *slog.Logger, patternOpts ...evaluators.PatternOption) []Option {
	return []Option{
		WithEvaluator(policy.RuleTypePatternMatch, evaluators.NewPatternMatch(rules, logger, patternOpts...)),
		WithEvaluator(policy.RuleTypeListMatch, evaluators.NewListMatch(logger)),
		WithEvaluator(policy.RuleTypePayloadSize, evaluators.NewPayloadSize(logger)),
		WithEvaluator(policy.RuleTypeRateLimit, evaluators.NewRateLimit(store, clock, logger)),
	}
}
