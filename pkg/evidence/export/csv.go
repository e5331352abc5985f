package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
)

// CSVExporter exports records as CSV, one row per record. Violations are
// flattened to a ";"-separated list of rule ids.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "event_id", "workspace_id", "agent_id", "event_type",
	"action", "violated_rule_ids", "rules_evaluated", "short_circuited",
	"duration_us", "content_hash", "content_size", "recorded_at",
}

// Export writes the records.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.VerdictRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
		if err := writer.Write(row(r)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func row(r *evidence.VerdictRecord) []string {
	return []string{
		r.ID,
		r.EventID,
		r.WorkspaceID,
		r.AgentID,
		r.EventType,
		string(r.Action),
		strings.Join(r.RuleIDs(), ";"),
		strconv.Itoa(r.RulesEvaluated),
		strconv.FormatBool(r.ShortCircuited),
		strconv.FormatInt(r.Duration.Microseconds(), 10),
		r.ContentHash,
		strconv.Itoa(r.ContentSize),
		r.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}
