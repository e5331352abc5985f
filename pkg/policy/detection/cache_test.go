package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	rules   map[string][]*Rule
	listErr error
	calls   int
}

func (f *fakeSource) ListDetectionRules(_ context.Context, workspaceID string) ([]*Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rules[workspaceID], nil
}

func (f *fakeSource) ListWorkspaces(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ws := make([]string, 0, len(f.rules))
	for id := range f.rules {
		ws = append(ws, id)
	}
	return ws, nil
}

func (f *fakeSource) set(workspaceID string, rules ...*Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[workspaceID] = rules
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

type refreshCounter struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *refreshCounter) RecordCacheRefresh(result string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func newSource() *fakeSource {
	return &fakeSource{rules: map[string][]*Rule{
		"ws-1": {
			{ID: "aws", WorkspaceID: "ws-1", DetectionType: TypeRegex, Pattern: `AKIA[0-9A-Z]{16}`, Enabled: true},
			{ID: "words", WorkspaceID: "ws-1", DetectionType: TypeKeyword, Keywords: []string{"Secret"}, Enabled: true},
		},
		"ws-2": {
			{ID: "broken", WorkspaceID: "ws-2", DetectionType: TypeRegex, Pattern: `([a-z`, Enabled: true},
		},
	}}
}

func TestCache_Refresh(t *testing.T) {
	src := newSource()
	rec := &refreshCounter{results: map[string]int{}}
	c := NewCache(src, nil, rec)

	if got := c.GetDetectionRules("ws-1"); len(got) != 0 {
		t.Fatalf("Expected empty cache before refresh, got %d rules", len(got))
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := c.GetDetectionRules("ws-1"); len(got) != 2 {
		t.Errorf("Expected 2 rules for ws-1, got %d", len(got))
	}
	broken := c.GetDetectionRules("ws-2")
	if len(broken) != 1 || broken[0].CompileErr == nil {
		t.Error("Expected the uncompilable rule to be cached with its error")
	}
	if c.Size() != 3 {
		t.Errorf("Expected 3 cached rules, got %d", c.Size())
	}
	if c.LoadedAt().IsZero() {
		t.Error("Expected LoadedAt to be set")
	}
	if rec.results["success"] != 1 {
		t.Errorf("Expected 1 successful refresh recorded, got %v", rec.results)
	}
}

func TestCache_RefreshErrorKeepsSnapshot(t *testing.T) {
	src := newSource()
	rec := &refreshCounter{results: map[string]int{}}
	c := NewCache(src, nil, rec)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	src.fail(errors.New("database unavailable"))
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh error")
	}
	if err := c.RefreshWorkspace(context.Background(), "ws-1"); err == nil {
		t.Fatal("Expected workspace refresh error")
	}

	if got := c.GetDetectionRules("ws-1"); len(got) != 2 {
		t.Errorf("Expected previous rules to remain, got %d", len(got))
	}
	if rec.results["error"] != 2 {
		t.Errorf("Expected 2 failed refreshes recorded, got %v", rec.results)
	}
}

func TestCache_RefreshWorkspace(t *testing.T) {
	src := newSource()
	c := NewCache(src, nil, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	before := c.GetDetectionRules("ws-2")

	src.set("ws-1", &Rule{ID: "only", WorkspaceID: "ws-1", DetectionType: TypeKeyword, Keywords: []string{"x"}, Enabled: true})
	src.set("ws-2")
	if err := c.RefreshWorkspace(context.Background(), "ws-1"); err != nil {
		t.Fatalf("RefreshWorkspace failed: %v", err)
	}

	if got := c.GetDetectionRules("ws-1"); len(got) != 1 || got[0].ID != "only" {
		t.Errorf("Expected ws-1 replaced, got %d rules", len(got))
	}
	after := c.GetDetectionRules("ws-2")
	if len(after) != 1 || after[0] != before[0] {
		t.Error("Expected other workspaces to keep their compiled rules")
	}

	if err := c.RefreshWorkspace(context.Background(), "ws-2"); err != nil {
		t.Fatalf("RefreshWorkspace failed: %v", err)
	}
	if got := c.GetDetectionRules("ws-2"); len(got) != 0 {
		t.Errorf("Expected ws-2 emptied, got %d rules", len(got))
	}
}

func TestCache_ConcurrentReadsDuringRefresh(t *testing.T) {
	src := newSource()
	c := NewCache(src, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if n := len(c.GetDetectionRules("ws-1")); n != 0 && n != 2 {
					t.Errorf("Expected a whole snapshot, saw %d rules", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if err := c.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}
	cancel()
	wg.Wait()
}

func TestCache_RunPeriodic(t *testing.T) {
	src := newSource()
	c := NewCache(src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunPeriodic(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.Size() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected a periodic refresh to populate the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not return after cancel")
	}
}

func TestCache_RunPeriodicDisabled(t *testing.T) {
	c := NewCache(newSource(), nil, nil)
	// A non-positive interval returns immediately.
	c.RunPeriodic(context.Background(), 0)
	if c.Size() != 0 {
		t.Error("Expected no refresh")
	}
}
