package deliberation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

var (
	// ErrQueueFull is returned when the dispatch queue has no room.
	ErrQueueFull = errors.New("deliberation queue full")

	// ErrClosed is returned when submitting after Close.
	ErrClosed = errors.New("deliberation dispatcher closed")
)

// Handoff is what the deliberation process receives: the event and the
// verdict with its evidence.
type Handoff struct {
	ID          string             `json:"id"`
	WorkspaceID string             `json:"workspace_id"`
	Event       policy.Event       `json:"event"`
	Action      policy.Action      `json:"action"`
	Violations  []policy.Violation `json:"violations"`
	CreatedAt   time.Time          `json:"created_at"`

	// TraceContext carries the W3C trace context of the evaluation. It
	// travels as message headers, not in the body.
	TraceContext map[string]string `json:"-"`
}

// NewHandoff copies the event and verdict into a handoff.
func NewHandoff(event *policy.Event, verdict *policy.Verdict) Handoff {
	violations := verdict.Violations
	if violations == nil {
		violations = []policy.Violation{}
	}
	return Handoff{
		ID:          uuid.NewString(),
		WorkspaceID: event.WorkspaceID,
		Event:       *event,
		Action:      verdict.Action,
		Violations:  append([]policy.Violation(nil), violations...),
		CreatedAt:   time.Now().UTC(),

		TraceContext: map[string]string{},
	}
}

// Trigger delivers a handoff to the deliberation process.
type Trigger interface {
	Trigger(ctx context.Context, h Handoff) error
	Close() error
}

// Observer is notified of each handoff outcome: "sent", "dropped" or
// "failed".
type Observer interface {
	RecordDeliberationHandoff(result string)
}

// TriggerError wraps a failed delivery.
type TriggerError struct {
	Trigger   string
	HandoffID string
	Cause     error
}

// Error implements the error interface.
func (e *TriggerError) Error() string {
	return "deliberation trigger " + e.Trigger + " failed for handoff " + e.HandoffID + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause error.
func (e *TriggerError) Unwrap() error {
	return e.Cause
}
