package bandwidth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowStore is the counter backend of the fixed-window limiter.
type WindowStore interface {
	// Add increments key by n, sets its TTL on first use and returns the new total.
	Add(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)
	// Refund subtracts n from key.
	Refund(ctx context.Context, key string, n int64) error
}

// RedisWindowStore implements WindowStore with INCRBY and PEXPIRE.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore wraps a go-redis client.
func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

// Add increments the counter and its expiry in one round trip.
func (s *RedisWindowStore) Add(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, n)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment bandwidth window: %w", err)
	}
	return incr.Val(), nil
}

// Refund gives back bytes charged by a refused request.
func (s *RedisWindowStore) Refund(ctx context.Context, key string, n int64) error {
	if err := s.client.DecrBy(ctx, key, n).Err(); err != nil {
		return fmt.Errorf("refund bandwidth window: %w", err)
	}
	return nil
}

// RedisLimiter enforces a fixed window shared by every API instance.
type RedisLimiter struct {
	store  WindowStore
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter builds a fixed-window limiter over store.
func NewRedisLimiter(store WindowStore, bytesPerWindow int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{store: store, limit: bytesPerWindow, window: window, now: time.Now}
}

// CheckAndConsume charges bytes to the owner's current window, refunding when over the limit.
func (l *RedisLimiter) CheckAndConsume(ctx context.Context, ownerID string, bytes int64) (Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	reset := start.Add(l.window)
	key := fmt.Sprintf("drive:bandwidth:%s:%d", ownerID, start.Unix())

	total, err := l.store.Add(ctx, key, bytes, l.window)
	if err != nil {
		return Decision{}, err
	}
	if total > l.limit {
		if err := l.store.Refund(ctx, key, bytes); err != nil {
			return Decision{}, err
		}
		return Decision{Allowed: false, ResetTime: reset}, nil
	}
	return Decision{Allowed: true}, nil
}
