package evaluators

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustCompileRule(t *testing.T, rt policy.RuleType, cfg map[string]any) *policy.CompiledRule {
	t.Helper()
	cr := policy.CompileRule(policy.PolicyRule{
		ID:          "rule-1",
		WorkspaceID: "ws-1",
		Name:        "test rule",
		RuleType:    rt,
		Action:      policy.ActionBlock,
		Enabled:     true,
		Config:      cfg,
	})
	if cr.ConfigErr != nil {
		t.Fatalf("Expected valid %s config, got %v", rt, cr.ConfigErr)
	}
	return cr
}

// staticRules is a RuleProvider over a fixed set of detection rules.
type staticRules map[string][]*detection.Compiled

func (s staticRules) GetDetectionRules(workspaceID string) []*detection.Compiled {
	return s[workspaceID]
}

type fakeClock struct {
	now atomic.Int64
}

func (c *fakeClock) NowSeconds() int64 { return c.now.Load() }

func (c *fakeClock) Set(s int64) { c.now.Store(s) }

type timeoutCounter struct {
	mu    sync.Mutex
	count map[string]int
}

func (r *timeoutCounter) RecordRegexTimeout(workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == nil {
		r.count = make(map[string]int)
	}
	r.count[workspaceID]++
}

func (r *timeoutCounter) Get(workspaceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[workspaceID]
}
