package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/query"
)

// MemoryStorage implements evidence.Storage in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*evidence.VerdictRecord
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*evidence.VerdictRecord)}
}

// Store saves a copy of the record.
func (m *MemoryStorage) Store(ctx context.Context, record *evidence.VerdictRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.ID]; exists {
		return evidence.NewStorageError("memory", "store", fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID))
	}
	m.records[record.ID] = copyRecord(record)
	return nil
}

// Query returns copies of the matching records.
func (m *MemoryStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.VerdictRecord, error) {
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	applied := *q
	query.ApplyDefaults(&applied)

	m.mu.RLock()
	matched := m.filter(&applied)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if applied.SortOrder == "asc" {
				return a.RecordedAt.Before(b.RecordedAt)
			}
			return a.RecordedAt.After(b.RecordedAt)
		}
		if applied.SortOrder == "asc" {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if applied.Offset >= len(matched) {
		return []*evidence.VerdictRecord{}, nil
	}
	end := applied.Offset + applied.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*evidence.VerdictRecord, 0, end-applied.Offset)
	for _, r := range matched[applied.Offset:end] {
		page = append(page, copyRecord(r))
	}
	return page, nil
}

// Count returns the number of matching records.
func (m *MemoryStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := query.Validate(q); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filter(q))), nil
}

// Delete removes matching records.
func (m *MemoryStorage) Delete(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := query.Validate(q); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := m.filter(q)
	for _, r := range matched {
		delete(m.records, r.ID)
	}
	return int64(len(matched)), nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	return nil
}

// filter must be called with the lock held.
func (m *MemoryStorage) filter(q *evidence.Query) []*evidence.VerdictRecord {
	var out []*evidence.VerdictRecord
	for _, r := range m.records {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r *evidence.VerdictRecord, q *evidence.Query) bool {
	if q.StartTime != nil && r.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && !r.RecordedAt.Before(*q.EndTime) {
		return false
	}
	if q.WorkspaceID != "" && r.WorkspaceID != q.WorkspaceID {
		return false
	}
	if q.AgentID != "" && r.AgentID != q.AgentID {
		return false
	}
	if q.EventID != "" && r.EventID != q.EventID {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	return true
}

func copyRecord(r *evidence.VerdictRecord) *evidence.VerdictRecord {
	cp := *r
	if r.Violations != nil {
		cp.Violations = append(cp.Violations[:0:0], r.Violations...)
	}
	return &cp
}
