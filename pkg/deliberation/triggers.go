package deliberation

import (
	"context"
	"log/slog"
)

// NoopTrigger discards every handoff.
type NoopTrigger struct{}

// Trigger implements Trigger.
func (NoopTrigger) Trigger(context.Context, Handoff) error { return nil }

// Close implements Trigger.
func (NoopTrigger) Close() error { return nil }

// LogTrigger logs each handoff. Event content is not logged.
type LogTrigger struct {
	logger *slog.Logger
}

// NewLogTrigger creates a logging trigger.
func NewLogTrigger(logger *slog.Logger) *LogTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTrigger{logger: logger.With("component", "deliberation.log")}
}

// Trigger implements Trigger.
func (t *LogTrigger) Trigger(ctx context.Context, h Handoff) error {
	ruleIDs := make([]string, 0, len(h.Violations))
	for _, v := range h.Violations {
		ruleIDs = append(ruleIDs, v.RuleID)
	}
	t.logger.InfoContext(ctx, "deliberation requested",
		"handoff_id", h.ID,
		"workspace_id", h.WorkspaceID,
		"event_id", h.Event.ID,
		"agent_id", h.Event.AgentID,
		"action", h.Action,
		"rule_ids", ruleIDs,
	)
	return nil
}

// Close implements Trigger.
func (t *LogTrigger) Close() error { return nil }
