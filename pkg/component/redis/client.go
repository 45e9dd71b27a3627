// Package redis 创建共享的 go-redis 客户端，供 redis 限流和回答缓存使用。
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	options "github.com/kart-io/ai-router/pkg/options/redis"
)

// Client 包装 go-redis 客户端。
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New 使用 context.Background 建立连接。
func New(opts *options.Options) (*Client, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext 建立连接并 Ping 确认可用，失败时关闭客户端。
func NewWithContext(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %w", errs[0])
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", opts.Addr(), err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

// Name 返回组件名称。
func (c *Client) Name() string {
	return "redis"
}

// Ping 检查连接。
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接，可重复调用。
func (c *Client) Close() error {
	return c.client.Close()
}

// Client 返回底层 go-redis 客户端。
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options 返回连接配置。
func (c *Client) Options() *options.Options {
	return c.opts
}
