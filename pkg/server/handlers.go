package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/export"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/engine"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/logging"
	"github.com/obutuz/swarmshield-sub004/pkg/telemetry/tracing"
)

// StatusResponse acknowledges refresh and reload requests.
type StatusResponse struct {
	Status      string `json:"status"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// startSpan starts a child span, or returns a noop span without a tracer.
func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.deps.Tracer == nil {
		return ctx, noop.Span{}
	}
	return s.deps.Tracer.Start(ctx, name)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var event policy.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, codeBodyTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, codeInvalidRequest, "malformed event JSON: "+err.Error())
		return
	}

	ctx := logging.WithWorkspaceID(r.Context(), event.WorkspaceID)
	ctx = logging.WithAgentID(ctx, event.AgentID)
	ctx = logging.WithEventID(ctx, event.ID)

	ctx, span := s.startSpan(ctx, "policy.evaluate")
	defer span.End()
	tracing.SetEventAttributes(span, &event)

	verdict, err := s.deps.Evaluator.Evaluate(ctx, &event)
	if err != nil {
		tracing.SetStatus(span, err)
		if errors.Is(err, engine.ErrInvalidEvent) {
			writeError(w, r, http.StatusBadRequest, codeInvalidEvent, err.Error())
			return
		}
		s.logger.ErrorContext(ctx, "evaluation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "evaluation failed")
		return
	}
	tracing.SetVerdictAttributes(span, verdict)

	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleRefreshDetection(w http.ResponseWriter, r *http.Request) {
	if s.deps.Detection == nil {
		writeError(w, r, http.StatusNotFound, codeNotConfigured, "detection cache is not configured")
		return
	}
	workspaceID := r.PathValue("id")
	ctx := logging.WithWorkspaceID(r.Context(), workspaceID)

	if err := s.deps.Detection.RefreshWorkspace(ctx, workspaceID); err != nil {
		s.logger.ErrorContext(ctx, "detection refresh failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeReloadFailed, "detection refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "refreshed", WorkspaceID: workspaceID})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reload == nil {
		writeError(w, r, http.StatusNotFound, codeNotConfigured, "rule reload is not configured")
		return
	}
	if err := s.deps.Reload(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "rule reload failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeReloadFailed, "rule reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "reloaded"})
}

// handleQueryVerdicts serves a workspace's audit records.
//
// Query parameters: action, agent_id, event_id, since and until (RFC 3339,
// until exclusive), limit, offset, order (asc|desc), format (json|csv).
func (s *Server) handleQueryVerdicts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verdicts == nil {
		writeError(w, r, http.StatusNotFound, codeNotConfigured, "verdict audit trail is disabled")
		return
	}

	query, err := parseVerdictQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	format := r.URL.Query().Get("format")
	exporter, err := export.ForFormat(format, false)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	records, err := s.deps.Verdicts.Query(r.Context(), query)
	if err != nil {
		var qerr *evidence.QueryError
		if errors.As(err, &qerr) {
			writeError(w, r, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "verdict query failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "verdict query failed")
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := exporter.Export(r.Context(), records, w); err != nil {
		s.logger.ErrorContext(r.Context(), "verdict export failed", "error", err)
	}
}

func parseVerdictQuery(r *http.Request) (*evidence.Query, error) {
	params := r.URL.Query()
	q := &evidence.Query{
		WorkspaceID: r.PathValue("id"),
		AgentID:     params.Get("agent_id"),
		EventID:     params.Get("event_id"),
		SortOrder:   params.Get("order"),
	}

	if v := params.Get("action"); v != "" {
		action, err := policy.ParseAction(v)
		if err != nil {
			return nil, err
		}
		q.Action = action
	}
	for name, dst := range map[string]**time.Time{"since": &q.StartTime, "until": &q.EndTime} {
		v := params.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = &t
	}
	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		v := params.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}
	return q, nil
}
