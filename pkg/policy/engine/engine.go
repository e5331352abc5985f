package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/evaluators"
)

// RuleSource provides policy rules to the orchestrator.
type RuleSource interface {
	// ListWorkspaces returns all workspace identifiers that own rules.
	ListWorkspaces(ctx context.Context) ([]string, error)

	// ListPolicyRules returns every policy rule of a workspace, enabled or not.
	ListPolicyRules(ctx context.Context, workspaceID string) ([]*policy.PolicyRule, error)
}

// Recorder persists verdicts for audit. Record must not block.
type Recorder interface {
	Record(ctx context.Context, event *policy.Event, verdict *policy.Verdict)
}

// Deliberator receives flag and block verdicts. Submit must not block.
type Deliberator interface {
	Submit(ctx context.Context, event *policy.Event, verdict *policy.Verdict)
}

// Metrics observes evaluation. All methods must be safe for concurrent use.
type Metrics interface {
	RecordVerdict(action policy.Action, duration time.Duration)
	RecordRuleEvaluation(ruleType policy.RuleType, status string)
	RecordEvaluatorPanic(ruleType policy.RuleType)
}

// snapshot is never mutated after publication.
type snapshot struct {
	byWorkspace map[string][]*policy.CompiledRule
	loadedAt    time.Time
}

// Engine is the policy orchestrator. It evaluates an event against the
// enabled, applicable rules of its workspace and aggregates the results into
// one verdict.
//
// Rules are compiled and sorted on reload and published as an immutable
// snapshot, so Evaluate takes no locks. Many events may be evaluated
// concurrently; the only shared mutable state is the rate counter store
// behind the rate limit evaluator.
type Engine struct {
	config     *Config
	source     RuleSource
	evaluators map[policy.RuleType]evaluators.Evaluator
	logger     *slog.Logger

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex

	recorder    Recorder
	deliberator Deliberator
	metrics     Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator registers the evaluator for a rule type.
func WithEvaluator(t policy.RuleType, ev evaluators.Evaluator) Option {
	return func(e *Engine) { e.evaluators[t] = ev }
}

// WithRecorder records every verdict.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithDeliberator hands flag and block verdicts to deliberation.
func WithDeliberator(d Deliberator) Option {
	return func(e *Engine) { e.deliberator = d }
}

// WithMetrics reports evaluation metrics.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an orchestrator. It does not load rules; call Reload.
func New(config *Config, source RuleSource, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:     config,
		source:     source,
		evaluators: make(map[policy.RuleType]evaluators.Evaluator),
		logger:     logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&snapshot{byWorkspace: map[string][]*policy.CompiledRule{}})
	return e, nil
}

// Evaluate determines the verdict for one event. It returns an error only
// for events that cannot be evaluated at all; every rule-level problem
// degrades to a non-violation and is logged.
//
// Every enabled, applicable rule is evaluated; only StopOnBlock ends the
// loop early. ctx is passed to the evaluators unchanged.
func (e *Engine) Evaluate(ctx context.Context, event *policy.Event) (*policy.Verdict, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: event cannot be nil", ErrInvalidEvent)
	}
	if event.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id is required", ErrInvalidEvent)
	}

	start := time.Now()
	verdict := &policy.Verdict{Action: policy.ActionAllow, Violations: []policy.Violation{}}

	for _, rule := range e.current.Load().byWorkspace[event.WorkspaceID] {
		if !rule.Filters.Applies(event) {
			continue
		}

		verdict.Evaluated++
		res := e.evaluateRule(ctx, event, rule)
		if e.metrics != nil {
			e.metrics.RecordRuleEvaluation(rule.RuleType, string(res.Status))
		}
		if !res.Violated() {
			continue
		}

		verdict.Violations = append(verdict.Violations, policy.Violation{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			RuleType: rule.RuleType,
			Action:   rule.Action,
			Priority: rule.Priority,
			Detail:   res.Detail,
		})
		verdict.Action = policy.MostSevere(verdict.Action, rule.Action)

		if e.config.StopOnBlock && verdict.Action == policy.ActionBlock {
			verdict.ShortCircuited = true
			break
		}
	}

	verdict.Duration = time.Since(start)
	e.finish(ctx, event, verdict)
	return verdict, nil
}

// evaluateRule dispatches to the evaluator for the rule's type. A panic in
// the evaluator degrades to a pass.
func (e *Engine) evaluateRule(ctx context.Context, event *policy.Event, rule *policy.CompiledRule) (res evaluators.Result) {
	if rule.ConfigErr != nil {
		return evaluators.Result{Status: evaluators.StatusSkipped}
	}
	ev, ok := e.evaluators[rule.RuleType]
	if !ok {
		e.logger.WarnContext(ctx, "no evaluator registered for rule type",
			"workspace_id", event.WorkspaceID,
			"rule_id", rule.ID,
			"rule_type", rule.RuleType)
		return evaluators.Result{Status: evaluators.StatusSkipped}
	}

	defer func() {
		if r := recover(); r != nil {
			err := &EvaluationError{
				WorkspaceID: event.WorkspaceID,
				RuleID:      rule.ID,
				RuleType:    rule.RuleType,
				Cause:       fmt.Errorf("%w: %v", ErrEvaluatorPanic, r),
			}
			e.logger.ErrorContext(ctx, "evaluator failed, treating rule as passed",
				"error", err,
				"event_id", event.ID)
			if e.metrics != nil {
				e.metrics.RecordEvaluatorPanic(rule.RuleType)
			}
			res = evaluators.Result{Status: evaluators.StatusSkipped}
		}
	}()

	return ev.Evaluate(ctx, event, rule)
}

func (e *Engine) finish(ctx context.Context, event *policy.Event, verdict *policy.Verdict) {
	if e.metrics != nil {
		e.metrics.RecordVerdict(verdict.Action, verdict.Duration)
	}
	if e.recorder != nil {
		e.recorder.Record(ctx, event, verdict)
	}
	if verdict.RequiresDeliberation() && e.deliberator != nil {
		e.deliberator.Submit(ctx, event, verdict)
	}
	if verdict.Action != policy.ActionAllow {
		e.logger.InfoContext(ctx, "event violated policy",
			"workspace_id", event.WorkspaceID,
			"agent_id", event.AgentID,
			"event_id", event.ID,
			"action", verdict.Action,
			"violations", len(verdict.Violations),
			"duration", verdict.Duration)
	}
}

// Reload rebuilds the rule snapshot for every workspace. On error the
// previous snapshot stays in place.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	workspaces, err := e.source.ListWorkspaces(ctx)
	if err != nil {
		return &ReloadError{Cause: err}
	}

	next := &snapshot{
		byWorkspace: make(map[string][]*policy.CompiledRule, len(workspaces)),
		loadedAt:    time.Now(),
	}
	total := 0
	for _, ws := range workspaces {
		rules, err := e.load(ctx, ws)
		if err != nil {
			return err
		}
		if len(rules) > 0 {
			next.byWorkspace[ws] = rules
			total += len(rules)
		}
	}

	e.current.Store(next)
	e.logger.Info("policy rules reloaded",
		"workspace_count", len(next.byWorkspace),
		"rule_count", total)
	return nil
}

// ReloadWorkspace rebuilds the snapshot entry for one workspace.
func (e *Engine) ReloadWorkspace(ctx context.Context, workspaceID string) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	rules, err := e.load(ctx, workspaceID)
	if err != nil {
		return err
	}

	prev := e.current.Load()
	next := &snapshot{
		byWorkspace: make(map[string][]*policy.CompiledRule, len(prev.byWorkspace)+1),
		loadedAt:    time.Now(),
	}
	for ws, rs := range prev.byWorkspace {
		next.byWorkspace[ws] = rs
	}
	if len(rules) > 0 {
		next.byWorkspace[workspaceID] = rules
	} else {
		delete(next.byWorkspace, workspaceID)
	}

	e.current.Store(next)
	e.logger.Info("workspace policy rules reloaded",
		"workspace_id", workspaceID,
		"rule_count", len(rules))
	return nil
}

// load compiles, filters and sorts the enabled rules of one workspace.
func (e *Engine) load(ctx context.Context, workspaceID string) ([]*policy.CompiledRule, error) {
	stored, err := e.source.ListPolicyRules(ctx, workspaceID)
	if err != nil {
		return nil, &ReloadError{WorkspaceID: workspaceID, Cause: err}
	}

	rules := make([]*policy.CompiledRule, 0, len(stored))
	for _, r := range stored {
		if r == nil || !r.Enabled || r.WorkspaceID != workspaceID {
			continue
		}
		cr := policy.CompileRule(*r)
		if cr.ConfigErr != nil {
			e.logger.Warn("policy rule has invalid configuration and will never violate",
				"workspace_id", workspaceID,
				"rule_id", r.ID,
				"rule_name", r.Name,
				"rule_type", r.RuleType,
				"error", cr.ConfigErr)
		}
		rules = append(rules, cr)
	}

	if len(rules) > e.config.MaxRulesPerWorkspace {
		return nil, &ReloadError{
			WorkspaceID: workspaceID,
			Cause:       fmt.Errorf("%w: %d enabled rules, limit %d", ErrTooManyRules, len(rules), e.config.MaxRulesPerWorkspace),
		}
	}
	SortRules(rules)
	return rules, nil
}

// Rules returns the loaded rules of a workspace in evaluation order.
func (e *Engine) Rules(workspaceID string) []*policy.CompiledRule {
	rules := e.current.Load().byWorkspace[workspaceID]
	out := make([]*policy.CompiledRule, len(rules))
	copy(out, rules)
	return out
}

// LoadedAt returns when the current snapshot was built.
func (e *Engine) LoadedAt() time.Time {
	return e.current.Load().loadedAt
}
