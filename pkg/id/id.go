// Package id 生成请求 ID。
package id

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator 生成单调递增的 ULID，可并发使用。
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// Option 配置 Generator。
type Option func(*Generator)

// WithEntropy 设置随机源。
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) {
		g.entropy = r
	}
}

// WithClock 设置时间源。
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator 创建 ULID 生成器。
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		entropy: rand.Reader,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.entropy = ulid.Monotonic(g.entropy, 0)
	return g
}

// New 返回新的 ULID 字符串，同一毫秒内保持递增。
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// Valid 检查字符串是否是合法 ULID。
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time 返回 ULID 中的时间戳。
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

type requestIDKey struct{}

// WithRequestID 将请求 ID 写入 ctx。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom 读取 ctx 中的请求 ID，不存在时返回空串。
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey{}).(string)
	return s
}
