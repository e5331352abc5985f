package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Source provides detection rules from durable storage.
type Source interface {
	// ListDetectionRules returns every detection rule of a workspace,
	// enabled or not.
	ListDetectionRules(ctx context.Context, workspaceID string) ([]*Rule, error)

	// ListWorkspaces returns all workspace identifiers that own rules.
	ListWorkspaces(ctx context.Context) ([]string, error)
}

// RefreshRecorder observes cache refreshes. It may be nil.
type RefreshRecorder interface {
	RecordCacheRefresh(result string, rules int)
}

// snapshot is never mutated after publication.
type snapshot struct {
	byWorkspace map[string][]*Compiled
	loadedAt    time.Time
}

// Cache holds per-workspace detection rules in memory.
//
// Reads are lock-free: GetDetectionRules loads the current snapshot pointer.
// Refreshes build a new snapshot and publish it atomically, so readers see
// either the old or the new rule set and never a partial one. Refreshes are
// serialized among themselves.
type Cache struct {
	current  atomic.Pointer[snapshot]
	refresh  sync.Mutex
	source   Source
	logger   *slog.Logger
	recorder RefreshRecorder
}

// NewCache creates an empty cache backed by source.
func NewCache(source Source, logger *slog.Logger, recorder RefreshRecorder) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		source:   source,
		logger:   logger.With("component", "detection.cache"),
		recorder: recorder,
	}
	c.current.Store(&snapshot{byWorkspace: map[string][]*Compiled{}})
	return c
}

// GetDetectionRules returns the latest known rules for a workspace, or an
// empty slice. The returned slice must not be modified.
func (c *Cache) GetDetectionRules(workspaceID string) []*Compiled {
	return c.current.Load().byWorkspace[workspaceID]
}

// LoadedAt returns when the current snapshot was built.
func (c *Cache) LoadedAt() time.Time {
	return c.current.Load().loadedAt
}

// Size returns the number of cached rules across all workspaces.
func (c *Cache) Size() int {
	n := 0
	for _, rules := range c.current.Load().byWorkspace {
		n += len(rules)
	}
	return n
}

// Refresh reloads every workspace from the source and replaces the snapshot
// wholesale. On error the previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refresh.Lock()
	defer c.refresh.Unlock()

	workspaces, err := c.source.ListWorkspaces(ctx)
	if err != nil {
		c.record("error", 0)
		return fmt.Errorf("list workspaces: %w", err)
	}

	next := &snapshot{
		byWorkspace: make(map[string][]*Compiled, len(workspaces)),
		loadedAt:    time.Now(),
	}
	total := 0
	for _, ws := range workspaces {
		compiled, err := c.load(ctx, ws)
		if err != nil {
			c.record("error", 0)
			return err
		}
		if len(compiled) > 0 {
			next.byWorkspace[ws] = compiled
			total += len(compiled)
		}
	}

	c.current.Store(next)
	c.record("success", total)
	c.logger.Info("detection rules refreshed",
		"workspace_count", len(next.byWorkspace),
		"rule_count", total,
	)
	return nil
}

// RefreshWorkspace reloads one workspace and publishes a copy of the
// snapshot with only that workspace replaced.
func (c *Cache) RefreshWorkspace(ctx context.Context, workspaceID string) error {
	c.refresh.Lock()
	defer c.refresh.Unlock()

	compiled, err := c.load(ctx, workspaceID)
	if err != nil {
		c.record("error", 0)
		return err
	}

	prev := c.current.Load()
	next := &snapshot{
		byWorkspace: make(map[string][]*Compiled, len(prev.byWorkspace)+1),
		loadedAt:    time.Now(),
	}
	for ws, rules := range prev.byWorkspace {
		next.byWorkspace[ws] = rules
	}
	if len(compiled) > 0 {
		next.byWorkspace[workspaceID] = compiled
	} else {
		delete(next.byWorkspace, workspaceID)
	}

	c.current.Store(next)
	c.record("success", len(compiled))
	c.logger.Info("detection rules refreshed for workspace",
		"workspace_id", workspaceID,
		"rule_count", len(compiled),
	)
	return nil
}

// RunPeriodic calls Refresh every interval until ctx is cancelled. Failed
// refreshes are logged and keep the previous snapshot.
func (c *Cache) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("periodic detection refresh failed", "error", err)
			}
		}
	}
}

func (c *Cache) load(ctx context.Context, workspaceID string) ([]*Compiled, error) {
	rules, err := c.source.ListDetectionRules(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list detection rules for workspace %q: %w", workspaceID, err)
	}

	compiled := make([]*Compiled, 0, len(rules))
	for _, r := range rules {
		if r == nil {
			continue
		}
		cr := Compile(*r)
		if cr.CompileErr != nil && r.Enabled {
			c.logger.Warn("detection rule pattern does not compile",
				"workspace_id", workspaceID,
				"detection_rule_id", r.ID,
				"pattern", TruncatePattern(r.Pattern, 50),
				"error", cr.CompileErr,
			)
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

func (c *Cache) record(result string, rules int) {
	if c.recorder != nil {
		c.recorder.RecordCacheRefresh(result, rules)
	}
}
