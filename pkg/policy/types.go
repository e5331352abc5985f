package policy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is the outcome applied when a rule is violated, and the aggregated
// outcome of a verdict.
type Action string

const (
	// ActionAllow lets the event through.
	ActionAllow Action = "allow"

	// ActionFlag lets the event through but hands it to deliberation.
	ActionFlag Action = "flag"

	// ActionBlock rejects the event and hands it to deliberation.
	ActionBlock Action = "block"
)

// Severity returns the position of the action in the total order
// allow < flag < block. Unknown actions rank as allow.
func (a Action) Severity() int {
	switch a {
	case ActionBlock:
		return 2
	case ActionFlag:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the action is one of allow, flag or block.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionFlag, ActionBlock:
		return true
	}
	return false
}

// MostSevere returns the more severe of two actions.
func MostSevere(a, b Action) Action {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseAction parses an action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// RuleType identifies which evaluator handles a policy rule.
type RuleType string

const (
	RuleTypeRateLimit    RuleType = "rate_limit"
	RuleTypePatternMatch RuleType = "pattern_match"
	RuleTypePayloadSize  RuleType = "payload_size"
	RuleTypeListMatch    RuleType = "list_match"
)

// Valid reports whether the rule type is known.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypeRateLimit, RuleTypePatternMatch, RuleTypePayloadSize, RuleTypeListMatch:
		return true
	}
	return false
}

// Event is one reported agent action submitted for evaluation.
// The engine never mutates an Event.
type Event struct {
	// ID is an optional caller-assigned identifier used for audit correlation.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// WorkspaceID scopes the event. Rules never cross workspaces.
	WorkspaceID string `json:"workspace_id" yaml:"workspace_id"`

	// AgentID is the registered agent identifier, if any.
	AgentID string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`

	// AgentName is the agent display name, if any.
	AgentName string `json:"agent_name,omitempty" yaml:"agent_name,omitempty"`

	// AgentType is used only by applicability filters.
	AgentType string `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`

	// SourceIP is the reporting client's address, if any.
	SourceIP string `json:"source_ip,omitempty" yaml:"source_ip,omitempty"`

	// Content is the free-text content of the action.
	Content string `json:"content" yaml:"content"`

	// Payload is an optional structured document.
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`

	// EventType tags the kind of action ("tool_call", "message", ...).
	EventType string `json:"event_type" yaml:"event_type"`

	// Severity is the client-declared severity. It is informational only.
	Severity string `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Filters restrict a policy rule to particular agent or event types.
// Empty lists match everything.
type Filters struct {
	AgentTypes []string `json:"agent_types,omitempty" yaml:"agent_types,omitempty"`
	EventTypes []string `json:"event_types,omitempty" yaml:"event_types,omitempty"`
}

// Applies reports whether an event passes the filters.
func (f Filters) Applies(event *Event) bool {
	if len(f.EventTypes) > 0 && !containsFold(f.EventTypes, event.EventType) {
		return false
	}
	if len(f.AgentTypes) > 0 && !containsFold(f.AgentTypes, event.AgentType) {
		return false
	}
	return true
}

// PolicyRule is a workspace-scoped rule as stored durably. Config is the raw,
// untrusted configuration document; it is converted into a typed RuleConfig
// with ParseRuleConfig before evaluation.
type PolicyRule struct {
	ID          string         `json:"id" yaml:"id"`
	WorkspaceID string         `json:"workspace_id" yaml:"workspace_id"`
	Name        string         `json:"name" yaml:"name"`
	RuleType    RuleType       `json:"rule_type" yaml:"rule_type"`
	Action      Action         `json:"action" yaml:"action"`
	Priority    int            `json:"priority" yaml:"priority"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Config      map[string]any `json:"config" yaml:"config"`
	Filters     Filters        `json:"filters,omitempty" yaml:"filters,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty" yaml:"-"`
}

// Violation is the evidence produced by one violating rule. Detail carries
// only non-sensitive summaries, never raw matched content.
type Violation struct {
	RuleID   string         `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	RuleType RuleType       `json:"rule_type"`
	Action   Action         `json:"action"`
	Priority int            `json:"priority"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// Verdict is the aggregated decision for one event.
type Verdict struct {
	Action     Action        `json:"action"`
	Violations []Violation   `json:"violations"`
	Evaluated  int           `json:"rules_evaluated"`
	Duration   time.Duration `json:"duration_ns"`

	// ShortCircuited is true when evaluation stopped early on a block.
	ShortCircuited bool `json:"short_circuited,omitempty"`
}

// RequiresDeliberation reports whether the verdict is handed to deliberation.
func (v *Verdict) RequiresDeliberation() bool {
	return v.Action == ActionFlag || v.Action == ActionBlock
}

// MarshalViolations encodes the evidence list for storage.
func (v *Verdict) MarshalViolations() ([]byte, error) {
	if v.Violations == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.Violations)
}
