package detection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// AllWorkspaces is the invalidation payload requesting a full refresh.
const AllWorkspaces = "*"

// Refresher is the part of Cache the invalidator drives.
type Refresher interface {
	Refresh(ctx context.Context) error
	RefreshWorkspace(ctx context.Context, workspaceID string) error
}

// RedisInvalidator subscribes to a pub/sub channel on which rule editors
// publish the id of a workspace whose detection rules changed.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
	target  Refresher
	logger  *slog.Logger
}

// NewRedisInvalidator creates an invalidator for channel.
func NewRedisInvalidator(client *redis.Client, channel string, target Refresher, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{
		client:  client,
		channel: channel,
		target:  target,
		logger:  logger.With("component", "detection.invalidator"),
	}
}

// Run consumes invalidation messages until ctx is cancelled.
func (r *RedisInvalidator) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %q: %w", r.channel, err)
	}

	r.logger.Info("detection rule invalidation subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *RedisInvalidator) handle(ctx context.Context, payload string) {
	ws := strings.TrimSpace(payload)
	var err error
	switch ws {
	case "":
		r.logger.Warn("ignoring empty invalidation message")
		return
	case AllWorkspaces:
		err = r.target.Refresh(ctx)
	default:
		err = r.target.RefreshWorkspace(ctx, ws)
	}
	if err != nil {
		r.logger.Error("detection rule refresh after invalidation failed",
			"workspace_id", ws,
			"error", err,
		)
	}
}

// PublishInvalidation notifies subscribers that a workspace's detection rules changed.
func PublishInvalidation(ctx context.Context, client *redis.Client, channel, workspaceID string) error {
	return client.Publish(ctx, channel, workspaceID).Err()
}
