package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counters between engine instances. INCR is atomic on the
// server; each counter also gets an expiry of two windows so that scopes
// which stop sending events do not leave keys behind.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "swarmshield:rate:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) key(k Key) string {
	return r.keyPrefix + k.String()
}

// Increment implements Store.
func (r *RedisStore) Increment(ctx context.Context, key Key, window time.Duration) (int64, error) {
	k := r.key(key)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	if window > 0 {
		pipe.Expire(ctx, k, 2*window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment %s: %w", k, err)
	}
	return incr.Val(), nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Client exposes the underlying client so invalidation can share the connection.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
