package metrics

import (
	"sync"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/config"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"

	"github.com/prometheus/client_golang/prometheus"
)

// maxWorkspaceLabels bounds the workspace_id label of regex timeouts.
const maxWorkspaceLabels = 1000

// otherLabel replaces label values past the cardinality limit.
const otherLabel = "other"

// Collector owns the Prometheus registry and every SwarmShield metric.
// It satisfies the metrics hooks of the engine, the regex evaluator, the
// detection cache, the audit recorder and the deliberation dispatcher, so
// a single instance is passed to each of them.
//
// All Record methods are no-ops when metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	engineMetrics   *EngineMetrics
	pipelineMetrics *PipelineMetrics

	workspaces *CardinalityLimiter
}

// NewCollector creates a collector. If registry is nil a fresh registry is
// created; the process-wide default registry is never used.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng := engine.New(engineCfg, rules, logger, engine.WithMetrics(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.ExponentialBuckets(0.0001, 2.5, 12) // 100µs to ~2.4s
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		engineMetrics:   NewEngineMetrics(cfg, registry),
		pipelineMetrics: NewPipelineMetrics(cfg, registry),
		workspaces:      NewCardinalityLimiter(maxWorkspaceLabels),
	}
}

// RecordVerdict records one evaluated event.
func (c *Collector) RecordVerdict(action policy.Action, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordVerdict(string(action), duration)
}

// RecordRuleEvaluation records one rule result.
func (c *Collector) RecordRuleEvaluation(ruleType policy.RuleType, status string) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordRuleEvaluation(string(ruleType), status)
}

// RecordEvaluatorPanic records a panic recovered from an evaluator.
func (c *Collector) RecordEvaluatorPanic(ruleType policy.RuleType) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordEvaluatorPanic(string(ruleType))
}

// RecordRegexTimeout records an abandoned regex match. Workspaces beyond
// the label limit are aggregated under "other".
func (c *Collector) RecordRegexTimeout(workspaceID string) {
	if !c.config.Enabled {
		return
	}
	if !c.workspaces.Allow(workspaceID) {
		workspaceID = otherLabel
	}
	c.engineMetrics.RecordRegexTimeout(workspaceID)
}

// RecordCacheRefresh records a detection cache refresh.
func (c *Collector) RecordCacheRefresh(result string, rules int) {
	if !c.config.Enabled {
		return
	}
	c.pipelineMetrics.RecordCacheRefresh(result, rules)
}

// RecordAuditWrite records the outcome of a verdict audit write.
func (c *Collector) RecordAuditWrite(result string) {
	if !c.config.Enabled {
		return
	}
	c.pipelineMetrics.RecordAuditWrite(result)
}

// RecordDeliberationHandoff records the outcome of a deliberation handoff.
func (c *Collector) RecordDeliberationHandoff(result string) {
	if !c.config.Enabled {
		return
	}
	c.pipelineMetrics.RecordDeliberationHandoff(result)
}

// RegisterRateCounters exposes the number of live rate counter keys,
// sampled from fn on every scrape.
func (c *Collector) RegisterRateCounters(fn func() int) error {
	return c.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "rate_counters",
			Help:      "Current number of rate counter keys held in memory",
		},
		func() float64 { return float64(fn()) },
	))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values a metric
// may receive.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting up to maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of tracked values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
