package counter

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestWindowStart(t *testing.T) {
	tests := []struct {
		now, window, want int64
	}{
		{0, 60, 0},
		{59, 60, 0},
		{60, 60, 60},
		{125, 60, 120},
		{-1, 60, -60},
		{-60, 60, -60},
		{42, 0, 42},
	}
	for _, tt := range tests {
		if got := WindowStart(tt.now, tt.window); got != tt.want {
			t.Errorf("WindowStart(%d, %d): expected %d, got %d", tt.now, tt.window, tt.want, got)
		}
	}
}

func TestKey(t *testing.T) {
	k := Key{WorkspaceID: "ws", RuleID: "r1", ScopeID: "agent-1", WindowStart: 120}
	if got := k.String(); got != "ws:r1:agent-1:120" {
		t.Errorf("Expected ws:r1:agent-1:120, got %s", got)
	}
	if prev := k.Previous(60); prev.WindowStart != 60 || prev.ScopeID != "agent-1" {
		t.Errorf("Expected previous window at 60 in the same scope, got %+v", prev)
	}
	if k.WindowStart != 120 {
		t.Error("Expected Previous to leave the receiver unchanged")
	}
}

func TestMemoryStore_IncrementAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a := Key{WorkspaceID: "ws", RuleID: "r", ScopeID: "a", WindowStart: 0}
	b := Key{WorkspaceID: "ws", RuleID: "r", ScopeID: "b", WindowStart: 0}

	for i := int64(1); i <= 3; i++ {
		got, err := m.Increment(ctx, a, time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != i {
			t.Errorf("Expected %d, got %d", i, got)
		}
	}
	if got, _ := m.Increment(ctx, b, time.Minute); got != 1 {
		t.Errorf("Expected an independent counter for b, got %d", got)
	}
	if m.Len() != 2 {
		t.Errorf("Expected 2 live counters, got %d", m.Len())
	}

	if err := m.Delete(ctx, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := m.Delete(ctx, a); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
	if m.Get(a) != 0 || m.Len() != 1 {
		t.Errorf("Expected a removed, got count %d with %d live", m.Get(a), m.Len())
	}
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	m := NewMemoryStore()
	key := Key{WorkspaceID: "ws", RuleID: "r", ScopeID: "s"}

	const goroutines, perGoroutine = 50, 200
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Increment(context.Background(), key, time.Minute)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(key); got != goroutines*perGoroutine {
		t.Errorf("Expected %d, got %d", goroutines*perGoroutine, got)
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 live counter, got %d", m.Len())
	}
}

func TestInitialize_ReturnsSameStore(t *testing.T) {
	first := Initialize()
	if first == nil || Initialize() != first || Default() != first {
		t.Error("Expected Initialize and Default to return one process-wide store")
	}
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	if got := c.NowSeconds(); got != 0 {
		t.Errorf("Expected a fresh clock to read 0, got %d", got)
	}
	if (WallClock{}).NowSeconds() < 1_700_000_000 {
		t.Error("Expected wall clock to report Unix seconds")
	}
}

// TestRedisStore runs against a live server when
// SWARMSHIELD_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SWARMSHIELD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SWARMSHIELD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Fatalf("Redis ping failed: %v", err)
	}
	store := NewRedisStoreWithClient(client, "swarmshield:test:")
	defer store.Close()

	key := Key{WorkspaceID: "ws", RuleID: "r", ScopeID: time.Now().String(), WindowStart: 0}
	defer store.Delete(ctx, key)

	for i := int64(1); i <= 3; i++ {
		got, err := store.Increment(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != i {
			t.Errorf("Expected %d, got %d", i, got)
		}
	}

	ttl, err := store.Client().TTL(ctx, "swarmshield:test:"+key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= time.Minute || ttl > 2*time.Minute {
		t.Errorf("Expected expiry of two windows, got %s", ttl)
	}
}
