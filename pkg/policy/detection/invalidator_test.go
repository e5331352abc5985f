package detection

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRefresher struct {
	full       int
	workspaces []string
	err        error
	notify     chan struct{}
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.full++
	f.signal()
	return f.err
}

func (f *fakeRefresher) RefreshWorkspace(_ context.Context, workspaceID string) error {
	f.workspaces = append(f.workspaces, workspaceID)
	f.signal()
	return f.err
}

func (f *fakeRefresher) signal() {
	if f.notify == nil {
		return
	}
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func TestInvalidator_Handle(t *testing.T) {
	target := &fakeRefresher{}
	inv := NewRedisInvalidator(nil, "rules", target, nil)
	ctx := context.Background()

	inv.handle(ctx, " ws-1 \n")
	inv.handle(ctx, AllWorkspaces)
	inv.handle(ctx, "   ")

	if len(target.workspaces) != 1 || target.workspaces[0] != "ws-1" {
		t.Errorf("Expected a trimmed ws-1 refresh, got %v", target.workspaces)
	}
	if target.full != 1 {
		t.Errorf("Expected 1 full refresh, got %d", target.full)
	}

	// Refresh failures are logged, not propagated.
	target.err = errors.New("store down")
	inv.handle(ctx, "ws-2")
	if len(target.workspaces) != 2 {
		t.Errorf("Expected the failing refresh to be attempted, got %v", target.workspaces)
	}
}

// TestInvalidator_RedisRoundTrip runs against a live server when
// SWARMSHIELD_TEST_REDIS_ADDR is set.
func TestInvalidator_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("SWARMSHIELD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SWARMSHIELD_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	target := &fakeRefresher{notify: make(chan struct{}, 1)}
	channel := "swarmshield:test:invalidate"
	inv := NewRedisInvalidator(client, channel, target, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inv.Run(ctx)

	deadline := time.After(3 * time.Second)
	for {
		if err := PublishInvalidation(ctx, client, channel, "ws-9"); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		select {
		case <-target.notify:
			if target.workspaces[0] != "ws-9" {
				t.Errorf("Expected ws-9, got %v", target.workspaces)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("Expected the published invalidation to refresh ws-9")
		}
	}
}
