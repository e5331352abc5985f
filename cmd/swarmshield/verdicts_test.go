package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

func TestBuildVerdictQuery(t *testing.T) {
	orig := verdictsFlags
	defer func() { verdictsFlags = orig }()

	tests := []struct {
		name    string
		set     func()
		check   func(t *testing.T, q *evidence.Query)
		wantErr bool
	}{
		{
			name: "filters",
			set: func() {
				verdictsFlags.workspace = "ws-1"
				verdictsFlags.agent = "agent-7"
				verdictsFlags.action = "block"
				verdictsFlags.limit = 20
			},
			check: func(t *testing.T, q *evidence.Query) {
				if q.WorkspaceID != "ws-1" || q.AgentID != "agent-7" || q.Action != policy.ActionBlock || q.Limit != 20 {
					t.Errorf("Expected filters to be copied, got %+v", q)
				}
			},
		},
		{
			name: "time range",
			set: func() {
				verdictsFlags.since = "2026-03-01T00:00:00Z"
				verdictsFlags.until = "2026-03-02T00:00:00Z"
			},
			check: func(t *testing.T, q *evidence.Query) {
				if q.StartTime == nil || !q.StartTime.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
					t.Errorf("Expected start 2026-03-01, got %v", q.StartTime)
				}
				if q.EndTime == nil || !q.EndTime.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
					t.Errorf("Expected end 2026-03-02, got %v", q.EndTime)
				}
			},
		},
		{name: "bad action", set: func() { verdictsFlags.action = "quarantine" }, wantErr: true},
		{name: "bad since", set: func() { verdictsFlags.since = "yesterday" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdictsFlags = orig
			tt.set()
			q, err := buildVerdictQuery()
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildVerdictQuery failed: %v", err)
			}
			tt.check(t, q)
		})
	}
}

func TestWriteVerdictLines(t *testing.T) {
	var empty bytes.Buffer
	writeVerdictLines(&empty, nil)
	if !strings.Contains(empty.String(), "No verdicts found") {
		t.Errorf("Expected empty message, got %q", empty.String())
	}

	var buf bytes.Buffer
	writeVerdictLines(&buf, []*evidence.VerdictRecord{{
		ID:          "v1",
		WorkspaceID: "ws-1",
		Action:      policy.ActionFlag,
		Violations:  []policy.Violation{{RuleID: "r1"}, {RuleID: "r2"}},
		RecordedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	want := "2026-03-01T12:00:00Z  FLAG   ws-1  -  v1  rules=r1,r2\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}
