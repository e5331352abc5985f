package evidence

import (
	"context"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// VerdictRecord is the immutable audit record of one evaluated event.
// It never carries event content; ContentHash allows correlation with
// content held elsewhere.
type VerdictRecord struct {
	// Identity
	ID      string `json:"id"`
	EventID string `json:"event_id,omitempty"`

	// Scope
	WorkspaceID string `json:"workspace_id"`
	AgentID     string `json:"agent_id,omitempty"`
	EventType   string `json:"event_type,omitempty"`
	SourceIP    string `json:"source_ip,omitempty"`

	// Decision
	Action         policy.Action      `json:"action"`
	Violations     []policy.Violation `json:"violations"`
	RulesEvaluated int                `json:"rules_evaluated"`
	ShortCircuited bool               `json:"short_circuited,omitempty"`
	Duration       time.Duration      `json:"duration_ns"`

	// Correlation
	ContentHash string `json:"content_hash,omitempty"`
	ContentSize int    `json:"content_size"`

	// Timestamps
	EvaluatedAt time.Time `json:"evaluated_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// RuleIDs returns the ids of the violated rules in evidence order.
func (r *VerdictRecord) RuleIDs() []string {
	ids := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		ids = append(ids, v.RuleID)
	}
	return ids
}

// Query filters verdict records. Zero values mean "no filter".
type Query struct {
	// Time range over RecordedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive
	EndTime   *time.Time `json:"end_time,omitempty"`   // Exclusive

	// Filters
	WorkspaceID string        `json:"workspace_id,omitempty"`
	AgentID     string        `json:"agent_id,omitempty"`
	EventID     string        `json:"event_id,omitempty"`
	Action      policy.Action `json:"action,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder is "asc" or "desc" by RecordedAt.
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage defines the interface for verdict record storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record. Storing an existing id fails.
	Store(ctx context.Context, record *VerdictRecord) error

	// Query returns matching records. An empty result is not an error.
	Query(ctx context.Context, query *Query) ([]*VerdictRecord, error)

	// Count returns the number of matching records, ignoring pagination.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	// Used for retention.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
