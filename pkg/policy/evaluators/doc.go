// Package evaluators implements the per-rule-type checks of the policy engine.
//
// Each evaluator receives an event and a rule whose configuration has already
// been validated into its typed form. Evaluators never return errors. Invalid
// configuration, missing infrastructure and per-call failures all degrade to
// a non-violating result and a logged warning, so a broken rule cannot take
// down evaluation of the rules after it.
//
// # Evaluators
//
//   - PatternMatch: regex and keyword detection rules from the detection cache.
//     Regex matches run under a timeout.
//   - ListMatch: blocklist (fails open) and allowlist (fails closed) checks on
//     a whitelisted event field.
//   - PayloadSize: byte limits on content and the JSON-encoded payload.
//   - RateLimit: fixed-window counting in a shared counter.Store.
package evaluators
