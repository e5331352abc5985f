// Package policy defines the data model of the SwarmShield policy engine:
// events, policy rules, their typed configurations, violations and verdicts.
//
// Actions are totally ordered, allow < flag < block, and a verdict carries
// the most severe action among its violations.
//
// Rule configuration documents are untrusted. ParseRuleConfig validates a
// document against its rule type's schema once, at load time, producing one
// of PatternMatchConfig, ListMatchConfig, PayloadSizeConfig or
// RateLimitConfig. A rule whose document is rejected carries the error on
// its CompiledRule and never produces a violation.
//
// list_match rules can only inspect the event fields named by Field; there
// is no dynamic attribute lookup.
package policy
