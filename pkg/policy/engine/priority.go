package engine

import (
	"sort"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// Suggested priorities. Cheap checks get higher priorities so they are
// evaluated before expensive pattern checks.
const (
	PriorityHigh    = 100
	PriorityMedium  = 50
	PriorityLow     = 10
	PriorityDefault = 0
)

// SortRules orders rules by priority (highest first), then by name. The
// order fixes both evaluation order and evidence order.
func SortRules(rules []*policy.CompiledRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
}

// SuggestedPriority returns a default priority for a rule type.
func SuggestedPriority(t policy.RuleType) int {
	switch t {
	case policy.RuleTypePayloadSize, policy.RuleTypeListMatch:
		return PriorityHigh
	case policy.RuleTypeRateLimit:
		return PriorityMedium
	case policy.RuleTypePatternMatch:
		return PriorityLow
	default:
		return PriorityDefault
	}
}
