package evaluators

import (
	"context"
	"log/slog"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/limits/counter"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// RateLimit caps events per fixed window for an agent or a workspace.
type RateLimit struct {
	store  counter.Store
	clock  counter.Clock
	logger *slog.Logger
}

// NewRateLimit creates the evaluator. A nil store (or a nil *MemoryStore, as
// returned by counter.Default before Initialize) makes the evaluator fail
// open. A nil clock defaults to a monotonic clock.
func NewRateLimit(store counter.Store, clock counter.Clock, logger *slog.Logger) *RateLimit {
	if ms, ok := store.(*counter.MemoryStore); ok && ms == nil {
		store = nil
	}
	if clock == nil {
		clock = counter.NewMonotonicClock()
	}
	return &RateLimit{
		store:  store,
		clock:  clock,
		logger: defaultLogger(logger, "evaluator.rate_limit"),
	}
}

// Evaluate implements Evaluator. The event is counted before the comparison,
// so for max_events N the first N events in a window are within the limit
// and event N+1 is the first violation.
func (r *RateLimit) Evaluate(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) Result {
	cfg, ok := rule.Config.(policy.RateLimitConfig)
	if !ok {
		r.logger.WarnContext(ctx, "rule config is not a rate_limit config", ruleAttrs(event, rule)...)
		return skipped("invalid_config")
	}
	if cfg.WindowSeconds <= 0 || cfg.WindowSeconds > policy.MaxWindowSeconds ||
		cfg.MaxEvents <= 0 || cfg.MaxEvents > policy.MaxEventsCeiling {
		r.logger.WarnContext(ctx, "rate limit outside sanity ceilings, skipping",
			append(ruleAttrs(event, rule), "max_events", cfg.MaxEvents, "window_seconds", cfg.WindowSeconds)...)
		return skipped("out_of_bounds")
	}
	if r.store == nil {
		r.logger.WarnContext(ctx, "rate counter store unavailable, failing open", ruleAttrs(event, rule)...)
		return Result{Status: StatusWithinLimit}
	}

	key := counter.Key{
		WorkspaceID: event.WorkspaceID,
		RuleID:      rule.ID,
		ScopeID:     scopeID(event, cfg.Per),
		WindowStart: counter.WindowStart(r.clock.NowSeconds(), cfg.WindowSeconds),
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second

	count, err := r.store.Increment(ctx, key, window)
	if err != nil {
		r.logger.WarnContext(ctx, "rate counter increment failed, failing open",
			append(ruleAttrs(event, rule), "error", err)...)
		return Result{Status: StatusWithinLimit}
	}

	if err := r.store.Delete(ctx, key.Previous(cfg.WindowSeconds)); err != nil {
		r.logger.DebugContext(ctx, "failed to delete previous rate window",
			append(ruleAttrs(event, rule), "error", err)...)
	}

	if count <= cfg.MaxEvents {
		return Result{Status: StatusWithinLimit}
	}
	return violation(map[string]any{
		"current_count":  count,
		"max_events":     cfg.MaxEvents,
		"window_seconds": cfg.WindowSeconds,
		"per":            string(cfg.Per),
	})
}

// scopeID picks the counting unit. Events without an agent identifier are
// counted against the workspace.
func scopeID(event *policy.Event, per policy.Scope) string {
	if per == policy.ScopeAgent && event.AgentID != "" {
		return "agent:" + event.AgentID
	}
	return "workspace:" + event.WorkspaceID
}
