package evaluators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
)

// DefaultRegexTimeout bounds a single regex match.
const DefaultRegexTimeout = 100 * time.Millisecond

// RuleProvider supplies compiled detection rules for a workspace.
// *detection.Cache implements it.
type RuleProvider interface {
	GetDetectionRules(workspaceID string) []*detection.Compiled
}

// TimeoutRecorder counts regex evaluations abandoned on timeout.
type TimeoutRecorder interface {
	RecordRegexTimeout(workspaceID string)
}

// PatternMatch checks event content against the detection rules a
// pattern_match policy rule references.
type PatternMatch struct {
	rules    RuleProvider
	timeout  time.Duration
	recorder TimeoutRecorder
	logger   *slog.Logger
}

// PatternOption configures a PatternMatch evaluator.
type PatternOption func(*PatternMatch)

// WithRegexTimeout overrides DefaultRegexTimeout.
func WithRegexTimeout(d time.Duration) PatternOption {
	return func(p *PatternMatch) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithTimeoutRecorder reports abandoned regex evaluations.
func WithTimeoutRecorder(r TimeoutRecorder) PatternOption {
	return func(p *PatternMatch) { p.recorder = r }
}

// NewPatternMatch creates the evaluator over a detection rule provider. A
// nil provider (or a nil *detection.Cache) matches nothing.
func NewPatternMatch(rules RuleProvider, logger *slog.Logger, opts ...PatternOption) *PatternMatch {
	if c, ok := rules.(*detection.Cache); ok && c == nil {
		rules = nil
	}
	p := &PatternMatch{
		rules:   rules,
		timeout: DefaultRegexTimeout,
		logger:  defaultLogger(logger, "evaluator.pattern_match"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate implements Evaluator.
//
// Only enabled detection rules belonging to the event's workspace are
// considered. Every matching rule is reported, not just the first.
func (p *PatternMatch) Evaluate(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) Result {
	cfg, ok := rule.Config.(policy.PatternMatchConfig)
	if !ok {
		p.logger.WarnContext(ctx, "rule config is not a pattern_match config", ruleAttrs(event, rule)...)
		return skipped("invalid_config")
	}
	if len(cfg.DetectionRuleIDs) == 0 || event.Content == "" || p.rules == nil {
		return Result{Status: StatusNoMatch}
	}

	wanted := make(map[string]struct{}, len(cfg.DetectionRuleIDs))
	for _, id := range cfg.DetectionRuleIDs {
		wanted[id] = struct{}{}
	}

	var (
		ids   []string
		names []string
		lower string
	)
	for _, d := range p.rules.GetDetectionRules(event.WorkspaceID) {
		if _, ok := wanted[d.ID]; !ok || !d.Enabled {
			continue
		}

		var matched bool
		switch d.DetectionType {
		case detection.TypeRegex:
			matched = p.matchRegex(ctx, event, d)
		case detection.TypeKeyword:
			if lower == "" {
				lower = strings.ToLower(event.Content)
			}
			matched = matchKeywords(d, lower)
		case detection.TypeSemantic:
			// Handled by deliberation.
		default:
			p.logger.WarnContext(ctx, "unknown detection type",
				"workspace_id", event.WorkspaceID,
				"detection_rule_id", d.ID,
				"detection_type", d.DetectionType)
		}

		if matched {
			ids = append(ids, d.ID)
			names = append(names, d.Name)
		}
	}

	if len(ids) == 0 {
		return Result{Status: StatusNoMatch}
	}
	return violation(map[string]any{
		"matched_detection_rule_ids":   ids,
		"matched_detection_rule_names": names,
		"match_count":                  len(ids),
	})
}

func matchKeywords(d *detection.Compiled, lowerContent string) bool {
	for _, kw := range d.LowerKeywords {
		if strings.Contains(lowerContent, kw) {
			return true
		}
	}
	return false
}

// matchRegex runs the match on its own goroutine and gives up after the
// timeout. An abandoned goroutine writes only to its buffered channel and
// then exits; it touches no shared state.
func (p *PatternMatch) matchRegex(ctx context.Context, event *policy.Event, d *detection.Compiled) bool {
	if d.Regexp == nil {
		p.logger.WarnContext(ctx, "detection rule regex did not compile",
			"workspace_id", event.WorkspaceID,
			"detection_rule_id", d.ID,
			"pattern", detection.TruncatePattern(d.Pattern, 80),
			"error", d.CompileErr)
		return false
	}

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- false
			}
		}()
		done <- d.Regexp.MatchString(event.Content)
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case matched := <-done:
		return matched
	case <-timer.C:
		p.logger.WarnContext(ctx, "regex evaluation timed out",
			"workspace_id", event.WorkspaceID,
			"detection_rule_id", d.ID,
			"pattern", detection.TruncatePattern(d.Pattern, 80),
			"timeout", p.timeout)
		if p.recorder != nil {
			p.recorder.RecordRegexTimeout(event.WorkspaceID)
		}
		return false
	case <-ctx.Done():
		p.logger.DebugContext(ctx, "regex evaluation abandoned, caller canceled",
			"workspace_id", event.WorkspaceID,
			"detection_rule_id", d.ID)
		return false
	}
}
