// Package server exposes the policy engine over HTTP.
//
// # Endpoints
//
//	POST /v1/events/evaluate                          evaluate one event, returns the verdict
//	POST /v1/workspaces/{id}/detection-rules/refresh  reload a workspace's detection rules
//	POST /v1/rules/reload                             reload every rule from the rule store
//	GET  /v1/workspaces/{id}/verdicts                 query the verdict audit trail
//	GET  /health, /ready, /version                    probes and build info
//	GET  /metrics                                     Prometheus exposition
//
// Every non-2xx response carries an ErrorResponse body with a stable error
// code and the request id.
//
// # Middleware
//
// Requests pass through, outermost first: request id, access logging,
// panic recovery, tracing and the body size cap.
package server
