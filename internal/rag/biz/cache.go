package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ai-router/pkg/cache"
)

// CacheKey 返回回答缓存键 "{version}:{lower(question)}"。
func CacheKey(version int64, question string) string {
	return fmt.Sprintf("%d:%s", version, strings.ToLower(question))
}

// AnswerCache 按语料版本缓存回答。缓存错误只记录日志，不影响问答。
type AnswerCache interface {
	Get(ctx context.Context, version int64, question string) (string, bool)
	Set(ctx context.Context, version int64, question, answer string, ttl time.Duration)
	// Sweep 清理过期条目以及早于 currentVersion 的条目，返回清理数量。
	Sweep(ctx context.Context, currentVersion int64) int
	Len(ctx context.Context) int
}

type cachedAnswer struct {
	Answer  string
	Version int64
}

const versionIndex = "version"

// MemoryAnswerCache 进程内回答缓存。
type MemoryAnswerCache struct {
	store *cache.MemoryCache[string, cachedAnswer]
}

var _ AnswerCache = (*MemoryAnswerCache)(nil)

// NewMemoryAnswerCache 创建内存回答缓存，now 为 nil 时使用系统时钟。
func NewMemoryAnswerCache(now func() time.Time) *MemoryAnswerCache {
	c := cache.NewMemoryCache[string, cachedAnswer]()
	if now != nil {
		c.WithClock(now)
	}
	c.AddIndex(versionIndex, func(v cachedAnswer) any { return v.Version })
	return &MemoryAnswerCache{store: c}
}

func (c *MemoryAnswerCache) Get(_ context.Context, version int64, question string) (string, bool) {
	v, ok := c.store.Get(CacheKey(version, question))
	if !ok {
		return "", false
	}
	return v.Answer, true
}

func (c *MemoryAnswerCache) Set(_ context.Context, version int64, question, answer string, ttl time.Duration) {
	c.store.Set(CacheKey(version, question), cachedAnswer{Answer: answer, Version: version}, ttl)
}

func (c *MemoryAnswerCache) Sweep(_ context.Context, currentVersion int64) int {
	removed := c.store.Sweep()
	stale, err := c.store.DelWhere(versionIndex, func(v any) bool {
		ver, ok := v.(int64)
		return ok && ver < currentVersion
	})
	if err != nil {
		logger.Warnw("answer cache sweep failed", "error", err.Error())
	}
	return removed + stale
}

func (c *MemoryAnswerCache) Len(context.Context) int {
	return c.store.Len()
}

// RedisAnswerCache 基于 Redis 的回答缓存，过期由 Redis 负责。
type RedisAnswerCache struct {
	client    goredis.UniversalClient
	keyPrefix string
}

var _ AnswerCache = (*RedisAnswerCache)(nil)

// NewRedisAnswerCache 创建 Redis 回答缓存。
func NewRedisAnswerCache(client goredis.UniversalClient, keyPrefix string) *RedisAnswerCache {
	if keyPrefix == "" {
		keyPrefix = "ai-router:rag:answer:"
	}
	return &RedisAnswerCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisAnswerCache) key(version int64, question string) string {
	return c.keyPrefix + CacheKey(version, question)
}

func (c *RedisAnswerCache) Get(ctx context.Context, version int64, question string) (string, bool) {
	key := c.key(version, question)
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !stderrors.Is(err, goredis.Nil) {
			logger.Warnw("failed to get from answer cache", "error", err.Error(), "key", key)
		}
		return "", false
	}
	return val, true
}

func (c *RedisAnswerCache) Set(ctx context.Context, version int64, question, answer string, ttl time.Duration) {
	key := c.key(version, question)
	if err := c.client.Set(ctx, key, answer, ttl).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "error", err.Error(), "key", key)
	}
}

// Sweep 为空操作，Redis 按 EX 自动过期，旧版本的键不会再被读到。
func (c *RedisAnswerCache) Sweep(context.Context, int64) int {
	return 0
}

// Len 使用 SCAN 统计前缀下的键数量。
func (c *RedisAnswerCache) Len(ctx context.Context) int {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	n := 0
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during answer cache scan", "error", err.Error())
	}
	return n
}

// Clear 删除前缀下的所有键。
func (c *RedisAnswerCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	logger.Infow("cleared answer cache", "deleted_count", deleted)
	return nil
}
