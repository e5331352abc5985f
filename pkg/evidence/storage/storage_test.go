package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

func backends(t *testing.T) map[string]evidence.Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(&SQLiteConfig{
		Path:    filepath.Join(t.TempDir(), "verdicts.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]evidence.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(i int, ws string, action policy.Action) *evidence.VerdictRecord {
	r := &evidence.VerdictRecord{
		ID:             fmt.Sprintf("rec-%03d", i),
		EventID:        fmt.Sprintf("evt-%d", i),
		WorkspaceID:    ws,
		AgentID:        "agent-1",
		EventType:      "tool_call",
		Action:         action,
		RulesEvaluated: 3,
		Duration:       1500 * time.Microsecond,
		ContentHash:    "abc",
		ContentSize:    42,
		EvaluatedAt:    base.Add(time.Duration(i) * time.Minute),
		RecordedAt:     base.Add(time.Duration(i) * time.Minute),
	}
	if action != policy.ActionAllow {
		r.Violations = []policy.Violation{{
			RuleID:   "rule-1",
			RuleName: "size",
			RuleType: policy.RuleTypePayloadSize,
			Action:   action,
			Detail:   map[string]any{"exceeded": []any{"content"}},
		}}
	}
	return r
}

func seed(t *testing.T, s evidence.Storage) {
	t.Helper()
	actions := []policy.Action{policy.ActionAllow, policy.ActionFlag, policy.ActionBlock}
	for i := 0; i < 9; i++ {
		ws := "ws-1"
		if i%3 == 2 {
			ws = "ws-2"
		}
		if err := s.Store(context.Background(), record(i, ws, actions[i%3])); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := record(1, "ws-1", policy.ActionBlock)
			want.ShortCircuited = true
			if err := s.Store(context.Background(), want); err != nil {
				t.Fatalf("Store failed: %v", err)
			}

			got, err := s.Query(context.Background(), &evidence.Query{EventID: "evt-1"})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Expected 1 record, got %d", len(got))
			}
			r := got[0]
			if r.ID != want.ID || r.Action != policy.ActionBlock || !r.ShortCircuited {
				t.Errorf("Expected identity and decision to round-trip, got %+v", r)
			}
			if r.Duration != want.Duration || r.ContentSize != 42 || r.ContentHash != "abc" {
				t.Errorf("Expected metrics to round-trip, got %+v", r)
			}
			if !r.RecordedAt.Equal(want.RecordedAt) {
				t.Errorf("Expected recorded_at %v, got %v", want.RecordedAt, r.RecordedAt)
			}
			if len(r.Violations) != 1 || r.Violations[0].RuleID != "rule-1" || r.Violations[0].RuleType != policy.RuleTypePayloadSize {
				t.Errorf("Expected violations to round-trip, got %+v", r.Violations)
			}
		})
	}
}

func TestStorage_DuplicateID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := record(1, "ws-1", policy.ActionAllow)
			if err := s.Store(context.Background(), r); err != nil {
				t.Fatalf("Store failed: %v", err)
			}
			err := s.Store(context.Background(), r)
			if !errors.Is(err, evidence.ErrDuplicateRecord) {
				t.Errorf("Expected ErrDuplicateRecord, got %v", err)
			}
			var storageErr *evidence.StorageError
			if !errors.As(err, &storageErr) {
				t.Errorf("Expected a *StorageError, got %T", err)
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	start := base.Add(3 * time.Minute)
	end := base.Add(6 * time.Minute)

	tests := []struct {
		name    string
		query   *evidence.Query
		wantIDs []string
	}{
		{"workspace", &evidence.Query{WorkspaceID: "ws-2"}, []string{"rec-008", "rec-005", "rec-002"}},
		{"action", &evidence.Query{Action: policy.ActionFlag}, []string{"rec-007", "rec-004", "rec-001"}},
		{"workspace and action", &evidence.Query{WorkspaceID: "ws-1", Action: policy.ActionAllow}, []string{"rec-006", "rec-003", "rec-000"}},
		{"time range is half open", &evidence.Query{StartTime: &start, EndTime: &end}, []string{"rec-005", "rec-004", "rec-003"}},
		{"ascending with limit", &evidence.Query{SortOrder: "asc", Limit: 2}, []string{"rec-000", "rec-001"}},
		{"offset", &evidence.Query{Limit: 2, Offset: 7}, []string{"rec-001", "rec-000"}},
		{"offset past end", &evidence.Query{Offset: 50}, nil},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), tt.query)
				if err != nil {
					t.Fatalf("Query failed: %v", err)
				}
				if len(got) != len(tt.wantIDs) {
					t.Fatalf("Expected %d records, got %d", len(tt.wantIDs), len(got))
				}
				for i, id := range tt.wantIDs {
					if got[i].ID != id {
						t.Errorf("Expected record %d to be %s, got %s", i, id, got[i].ID)
					}
				}
			})
		}
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			ctx := context.Background()

			count, err := s.Count(ctx, &evidence.Query{WorkspaceID: "ws-1", Limit: 1})
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if count != 6 {
				t.Errorf("Expected count 6 ignoring limit, got %d", count)
			}

			cutoff := base.Add(4 * time.Minute)
			deleted, err := s.Delete(ctx, &evidence.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if deleted != 4 {
				t.Errorf("Expected 4 deleted, got %d", deleted)
			}

			remaining, _ := s.Count(ctx, &evidence.Query{})
			if remaining != 5 {
				t.Errorf("Expected 5 remaining, got %d", remaining)
			}
		})
	}
}

func TestStorage_InvalidQuery(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Query(context.Background(), &evidence.Query{Action: "quarantine"})
			var queryErr *evidence.QueryError
			if !errors.As(err, &queryErr) {
				t.Errorf("Expected *QueryError, got %v", err)
			}
		})
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	s := NewMemoryStorage()
	r := record(1, "ws-1", policy.ActionBlock)
	if err := s.Store(context.Background(), r); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	r.Violations[0].RuleID = "mutated"

	got, _ := s.Query(context.Background(), &evidence.Query{})
	if got[0].Violations[0].RuleID != "rule-1" {
		t.Errorf("Expected stored record to be isolated from caller, got %s", got[0].Violations[0].RuleID)
	}
}
