package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// Attribute keys. SwarmShield-specific keys use the "swarmshield."
// namespace; event content is never attached to spans.
const (
	AttrWorkspaceID    = "swarmshield.workspace_id"
	AttrAgentID        = "swarmshield.agent_id"
	AttrEventID        = "swarmshield.event_id"
	AttrEventType      = "swarmshield.event_type"
	AttrAction         = "swarmshield.verdict.action"
	AttrViolations     = "swarmshield.verdict.violations"
	AttrRuleIDs        = "swarmshield.verdict.rule_ids"
	AttrRulesEvaluated = "swarmshield.verdict.rules_evaluated"
	AttrShortCircuited = "swarmshield.verdict.short_circuited"
	AttrContentBytes   = "swarmshield.content_bytes"
	AttrRequestID      = "swarmshield.request_id"
)

// HTTPAttributes returns the request attributes of a server span.
func HTTPAttributes(r *http.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.path", r.URL.Path),
		attribute.String("user_agent.original", r.UserAgent()),
	}
}

// SetEventAttributes tags span with the event scope.
func SetEventAttributes(span trace.Span, event *policy.Event) {
	span.SetAttributes(
		attribute.String(AttrWorkspaceID, event.WorkspaceID),
		attribute.String(AttrAgentID, event.AgentID),
		attribute.String(AttrEventID, event.ID),
		attribute.String(AttrEventType, event.EventType),
		attribute.Int(AttrContentBytes, len(event.Content)),
	)
}

// SetVerdictAttributes tags span with the verdict.
func SetVerdictAttributes(span trace.Span, verdict *policy.Verdict) {
	ruleIDs := make([]string, 0, len(verdict.Violations))
	for _, v := range verdict.Violations {
		ruleIDs = append(ruleIDs, v.RuleID)
	}
	span.SetAttributes(
		attribute.String(AttrAction, string(verdict.Action)),
		attribute.Int(AttrViolations, len(verdict.Violations)),
		attribute.StringSlice(AttrRuleIDs, ruleIDs),
		attribute.Int(AttrRulesEvaluated, verdict.Evaluated),
		attribute.Bool(AttrShortCircuited, verdict.ShortCircuited),
	)
}
