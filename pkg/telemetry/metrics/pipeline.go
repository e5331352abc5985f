package metrics

import (
	"github.com/obutuz/swarmshield-sub004/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the components around evaluation.
//
// Metrics:
//   - swarmshield_detection_cache_refreshes_total: Cache refreshes by result
//   - swarmshield_detection_rules_compiled_total: Detection rules compiled by refreshes
//   - swarmshield_audit_writes_total: Verdict audit writes by result
//   - swarmshield_deliberation_handoffs_total: Deliberation handoffs by result
type PipelineMetrics struct {
	cacheRefreshes *prometheus.CounterVec
	rulesCompiled  prometheus.Counter
	auditWrites    *prometheus.CounterVec
	handoffs       *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics with the provided registry.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		cacheRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "detection_cache_refreshes_total",
				Help:      "Total number of detection cache refreshes by result",
			},
			[]string{"result"},
		),

		rulesCompiled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "detection_rules_compiled_total",
				Help:      "Total number of detection rules compiled by cache refreshes",
			},
		),

		auditWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_writes_total",
				Help:      "Total number of verdict audit writes by result",
			},
			[]string{"result"},
		),

		handoffs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "deliberation_handoffs_total",
				Help:      "Total number of deliberation handoffs by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		pm.cacheRefreshes,
		pm.rulesCompiled,
		pm.auditWrites,
		pm.handoffs,
	)

	return pm
}

// RecordCacheRefresh records a detection cache refresh ("success" or "error").
func (pm *PipelineMetrics) RecordCacheRefresh(result string, rules int) {
	pm.cacheRefreshes.WithLabelValues(result).Inc()
	if rules > 0 {
		pm.rulesCompiled.Add(float64(rules))
	}
}

// RecordAuditWrite records an audit write ("written", "dropped", "failed").
func (pm *PipelineMetrics) RecordAuditWrite(result string) {
	pm.auditWrites.WithLabelValues(result).Inc()
}

// RecordDeliberationHandoff records a handoff ("sent", "dropped", "failed").
func (pm *PipelineMetrics) RecordDeliberationHandoff(result string) {
	pm.handoffs.WithLabelValues(result).Inc()
}
