package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
)

// Exporter writes a batch of verdict records to w.
type Exporter interface {
	Export(ctx context.Context, records []*evidence.VerdictRecord, w io.Writer) error
}

// ForFormat returns the exporter for "json" or "csv".
func ForFormat(format string, pretty bool) (Exporter, error) {
	switch format {
	case "json", "":
		return NewJSONExporter(pretty), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, evidence.NewExportError(format, 0, fmt.Errorf("unsupported format"))
	}
}

// JSONExporter exports records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes the records as one JSON array, "[]" when empty.
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.VerdictRecord, w io.Writer) error {
	if records == nil {
		records = []*evidence.VerdictRecord{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return evidence.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	return nil
}
