package counter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is the process-wide in-memory counter table.
//
// Each key maps to its own *atomic.Int64 inside a sync.Map, so increments
// are lock-free and increments to unrelated keys never contend. Entries are
// created on first increment and removed only by Delete; there is no
// background sweep. Nothing is persisted.
type MemoryStore struct {
	counters sync.Map // Key -> *atomic.Int64
	size     atomic.Int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Increment implements Store.
func (m *MemoryStore) Increment(_ context.Context, key Key, _ time.Duration) (int64, error) {
	v, ok := m.counters.Load(key)
	if !ok {
		var loaded bool
		v, loaded = m.counters.LoadOrStore(key, new(atomic.Int64))
		if !loaded {
			m.size.Add(1)
		}
	}
	return v.(*atomic.Int64).Add(1), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	if _, loaded := m.counters.LoadAndDelete(key); loaded {
		m.size.Add(-1)
	}
	return nil
}

// Get returns the current count for key, or zero.
func (m *MemoryStore) Get(key Key) int64 {
	v, ok := m.counters.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Len returns the number of live counters.
func (m *MemoryStore) Len() int {
	return int(m.size.Load())
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
