package counter

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one rate counter.
//
// RuleID keeps two rate_limit rules with different windows from sharing a
// counter when their window starts coincide.
type Key struct {
	WorkspaceID string
	RuleID      string
	ScopeID     string
	WindowStart int64
}

// Previous returns the key of the immediately preceding window in the same scope.
func (k Key) Previous(windowSeconds int64) Key {
	k.WindowStart -= windowSeconds
	return k
}

// String renders the key in a stable form, used as the Redis key suffix.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", k.WorkspaceID, k.RuleID, k.ScopeID, k.WindowStart)
}

// Store is a concurrency-safe counter table.
// Implementations must make Increment an atomic add-and-read: concurrent
// increments of the same key never lose updates.
type Store interface {
	// Increment adds one to the counter for key, creating it at zero if
	// absent, and returns the new value. window is the length of the
	// counter's window; backends that expire entries may use it.
	Increment(ctx context.Context, key Key, window time.Duration) (int64, error)

	// Delete removes the counter for key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error

	// Close releases backend resources.
	Close() error
}

// WindowStart discretizes a point in time (in whole seconds) into the start
// of its fixed window.
func WindowStart(nowSeconds, windowSeconds int64) int64 {
	if windowSeconds <= 0 {
		return nowSeconds
	}
	start := (nowSeconds / windowSeconds) * windowSeconds
	if nowSeconds < 0 && nowSeconds%windowSeconds != 0 {
		start -= windowSeconds
	}
	return start
}
