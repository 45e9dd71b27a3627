package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter using one Redis sorted set per key, so the
// window is shared by every replica of the service.
type RedisLimiter struct {
	client *redis.Client
	config Config
	prefix string
	seq    atomic.Uint64
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a new Redis-based limiter.
func NewRedisLimiter(client *redis.Client, config Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ai-router:ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		config: config.withDefaults(),
		prefix: prefix,
		now:    time.Now,
	}
}

// Check prunes the window and compares its size with the limit.
func (r *RedisLimiter) Check(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	redisKey := r.prefix + key

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(now.Add(-r.config.Window).UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis pipeline error: %w", err)
	}

	if countCmd.Val() < int64(r.config.MaxRequests) {
		return Decision{Allowed: true}, nil
	}

	oldest := now
	if zs := oldestCmd.Val(); len(zs) > 0 {
		oldest = time.Unix(0, int64(zs[0].Score))
	}
	return Decision{Allowed: false, RetryAfter: retryAfter(oldest, now, r.config.Window)}, nil
}

// Record adds the current time to the key's sorted set.
func (r *RedisLimiter) Record(ctx context.Context, key string) error {
	now := r.now()
	redisKey := r.prefix + key
	member := fmt.Sprintf("%d-%d", now.UnixNano(), r.seq.Add(1))

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, r.config.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline error: %w", err)
	}
	return nil
}

// Usage returns the current window occupancy for key.
func (r *RedisLimiter) Usage(ctx context.Context, key string) (Usage, error) {
	redisKey := r.prefix + key
	u := Usage{Max: r.config.MaxRequests, WindowSeconds: int(r.config.Window / time.Second)}

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(r.now().Add(-r.config.Window).UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return u, fmt.Errorf("redis pipeline error: %w", err)
	}
	u.Used = int(countCmd.Val())
	return u, nil
}

// Reset deletes key, or every key under the prefix when key is empty.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if key != "" {
		return r.client.Del(ctx, r.prefix+key).Err()
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
