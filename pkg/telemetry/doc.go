// Package telemetry groups SwarmShield's observability packages.
//
//   - logging: slog construction, request-scoped attributes, redaction
//   - metrics: the Prometheus collector shared by every component
//   - tracing: OpenTelemetry spans and W3C trace context propagation
//   - health: liveness and readiness probes
//
// Event content never reaches any of them: logs mask it, metrics and
// spans carry only ids, counts and verdicts.
package telemetry
