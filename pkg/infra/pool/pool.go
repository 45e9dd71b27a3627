package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int `json:"capacity" mapstructure:"capacity"`
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool `json:"nonblocking" mapstructure:"nonblocking"`
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
	// PanicHandler 恐慌处理函数
	PanicHandler func(any) `json:"-" mapstructure:"-"`
	// OnFallback 任务降级为独立 goroutine 时回调，参数为池名称
	OnFallback func(pool string) `json:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认池配置，用于审计日志等后台写入。
func DefaultConfig() *Config {
	return &Config{
		Capacity:         50,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 100,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name       string
	pool       *ants.Pool
	onFallback func(string)
	stats    poolStatsCounter
	closed   bool
	closedMu sync.RWMutex
	inflight sync.WaitGroup
}

type poolStatsCounter struct {
	SubmittedTasks atomic.Int64
	CompletedTasks atomic.Int64
	RejectedTasks  atomic.Int64
	PanicRecovered atomic.Int64
	FallbackTasks  atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 `json:"submitted"` // 已提交任务数
	CompletedTasks int64 `json:"completed"` // 已完成任务数
	RejectedTasks  int64 `json:"rejected"`  // 拒绝任务数
	PanicRecovered int64 `json:"panics"`    // 恢复的 panic 数
	FallbackTasks  int64 `json:"fallback"`  // 降级为独立 goroutine 的任务数
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("pool %s: capacity must be positive", name)
	}

	p := &Pool{name: name, onFallback: config.OnFallback}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(p.panicHandler(config.PanicHandler)),
	}
	ap, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = ap

	logger.Infow("Worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

func (p *Pool) panicHandler(custom func(any)) func(any) {
	return func(r any) {
		p.stats.PanicRecovered.Add(1)
		if custom != nil {
			custom(r)
			return
		}
		logger.Errorw("Worker panic recovered", "pool", p.name, "panic", r)
	}
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// acquire 登记一个在途任务，池已关闭时返回 false。
func (p *Pool) acquire() bool {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	if p.closed {
		return false
	}
	p.inflight.Add(1)
	return true
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if !p.acquire() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer p.inflight.Done()
		defer p.stats.CompletedTasks.Add(1)
		task()
	})
	if err != nil {
		p.inflight.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.RejectedTasks.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	p.stats.SubmittedTasks.Add(1)
	return nil
}

// SubmitWithContext 提交带上下文的任务，任务开始前上下文已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Go 提交任务，池满时降级为独立 goroutine；池已关闭时丢弃任务并返回 false。
func (p *Pool) Go(task func()) bool {
	err := p.Submit(task)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrPoolClosed) {
		return false
	}

	logger.Warnw("pool unavailable, falling back to goroutine", "pool", p.name, "error", err.Error())
	if !p.acquire() {
		return false
	}
	p.stats.FallbackTasks.Add(1)
	if p.onFallback != nil {
		p.onFallback(p.name)
	}
	go func() {
		defer p.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				p.stats.PanicRecovered.Add(1)
				logger.Errorw("fallback task panic", "pool", p.name, "panic", r)
			}
		}()
		task()
	}()
	return true
}

// Wait 等待已提交的任务全部完成。
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Release 关闭池，等待在途任务最多 timeout。
func (p *Pool) Release(timeout time.Duration) error {
	p.closedMu.Lock()
	if p.closed {
		p.closedMu.Unlock()
		return nil
	}
	p.closed = true
	p.closedMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("pool %s: release timed out after %s", p.name, timeout)
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
	return err
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.stats.SubmittedTasks.Load(),
		CompletedTasks: p.stats.CompletedTasks.Load(),
		RejectedTasks:  p.stats.RejectedTasks.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
		FallbackTasks:  p.stats.FallbackTasks.Load(),
	}
}
