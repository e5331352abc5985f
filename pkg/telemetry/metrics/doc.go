// Package metrics provides Prometheus metrics for SwarmShield.
//
// A single Collector implements the metrics hooks of every component:
//
//   - engine.Metrics: verdicts, rule outcomes, evaluator panics
//   - evaluators.TimeoutRecorder: regex timeouts per workspace
//   - detection.RefreshRecorder: detection cache refreshes
//   - recorder.Observer: verdict audit writes
//   - deliberation.Observer: deliberation handoffs
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	if err := collector.RegisterRateCounters(store.Len); err != nil {
//		return err
//	}
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler(logger))
//
// # Cardinality
//
// Labels are bounded enums (action, rule type, result) except the
// workspace_id label of regex timeouts, which is capped and folds excess
// workspaces into "other". Rule ids are never used as labels.
package metrics
