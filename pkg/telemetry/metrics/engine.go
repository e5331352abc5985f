package metrics

import (
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks policy evaluation.
//
// Metrics:
//   - swarmshield_verdicts_total: Verdicts by action
//   - swarmshield_evaluation_duration_seconds: End-to-end evaluation latency
//   - swarmshield_rule_evaluations_total: Rule results by rule type and outcome
//   - swarmshield_evaluator_panics_total: Recovered evaluator panics
//   - swarmshield_regex_timeouts_total: Regex detection rules that hit the timeout
type EngineMetrics struct {
	verdictsTotal      *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleEvaluations    *prometheus.CounterVec
	evaluatorPanics    *prometheus.CounterVec
	regexTimeouts      *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		verdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "verdicts_total",
				Help:      "Total number of verdicts by action",
			},
			[]string{"action"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of event evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"action"},
		),

		ruleEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by rule type and outcome",
			},
			[]string{"rule_type", "outcome"},
		),

		evaluatorPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluator_panics_total",
				Help:      "Total number of recovered evaluator panics",
			},
			[]string{"rule_type"},
		),

		regexTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "regex_timeouts_total",
				Help:      "Total number of regex detection matches abandoned after the timeout",
			},
			[]string{"workspace_id"},
		),
	}

	registry.MustRegister(
		em.verdictsTotal,
		em.evaluationDuration,
		em.ruleEvaluations,
		em.evaluatorPanics,
		em.regexTimeouts,
	)

	return em
}

// RecordVerdict records one evaluated event.
func (em *EngineMetrics) RecordVerdict(action string, duration time.Duration) {
	em.verdictsTotal.WithLabelValues(action).Inc()
	em.evaluationDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRuleEvaluation records one rule result. outcome is the evaluator
// status ("no_match", "within_limit", "pass", "violation", "skipped").
func (em *EngineMetrics) RecordRuleEvaluation(ruleType, outcome string) {
	em.ruleEvaluations.WithLabelValues(ruleType, outcome).Inc()
}

// RecordEvaluatorPanic records a panic recovered from an evaluator.
func (em *EngineMetrics) RecordEvaluatorPanic(ruleType string) {
	em.evaluatorPanics.WithLabelValues(ruleType).Inc()
}

// RecordRegexTimeout records an abandoned regex match.
func (em *EngineMetrics) RecordRegexTimeout(workspaceID string) {
	em.regexTimeouts.WithLabelValues(workspaceID).Inc()
}
