package biz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/rag/biz"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryAnswerCache_Expiry(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := biz.NewMemoryAnswerCache(clock.Now)
	ctx := context.Background()

	c.Set(ctx, 1, "Question", "answer", 300*time.Second)
	got, ok := c.Get(ctx, 1, "question")
	require.True(t, ok)
	assert.Equal(t, "answer", got)

	_, ok = c.Get(ctx, 2, "question")
	assert.False(t, ok, "other corpus version must miss")

	clock.Advance(300 * time.Second)
	_, ok = c.Get(ctx, 1, "question")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Sweep(ctx, 1))
	assert.Zero(t, c.Len(ctx))
}

func TestMemoryAnswerCache_SweepDropsOldVersions(t *testing.T) {
	c := biz.NewMemoryAnswerCache(nil)
	ctx := context.Background()

	c.Set(ctx, 1, "a", "x", time.Hour)
	c.Set(ctx, 1, "b", "y", time.Hour)
	c.Set(ctx, 2, "a", "z", time.Hour)

	assert.Equal(t, 2, c.Sweep(ctx, 2))
	assert.Equal(t, 1, c.Len(ctx))
	got, ok := c.Get(ctx, 2, "a")
	require.True(t, ok)
	assert.Equal(t, "z", got)
}

// 辅助函数：创建测试用 Redis 客户端
func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis 不可用，跳过测试")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisAnswerCache(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	c := biz.NewRedisAnswerCache(client, "test:rag:answer:")
	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get(ctx, 1, "question")
	assert.False(t, ok)

	c.Set(ctx, 1, "Question", "answer", time.Minute)
	got, ok := c.Get(ctx, 1, "question")
	require.True(t, ok)
	assert.Equal(t, "answer", got)
	assert.Equal(t, 1, c.Len(ctx))

	ttl, err := client.TTL(ctx, "test:rag:answer:1:question").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	assert.Zero(t, c.Sweep(ctx, 2))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len(ctx))
}
