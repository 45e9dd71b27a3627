package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter with in-process state.
// Each key owns its own mutex, so one user's request never waits on another's.
// Expired timestamps are pruned lazily on access; a key whose window empties is dropped.
type MemoryLimiter struct {
	config Config
	store  sync.Map // key -> *entry
	now    func() time.Time
}

type entry struct {
	mu       sync.Mutex
	requests []time.Time
	// removed 表示 entry 已从 store 删除，写入方需要重新获取。
	removed bool
}

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		m.now = now
	}
}

// NewMemoryLimiter creates a new memory-based limiter.
func NewMemoryLimiter(config Config, opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		config: config.withDefaults(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check reports whether another request for key fits in the window.
func (m *MemoryLimiter) Check(_ context.Context, key string) (Decision, error) {
	value, ok := m.store.Load(key)
	if !ok {
		return Decision{Allowed: true}, nil
	}

	e := value.(*entry)
	now := m.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.requests = pruneBefore(e.requests, now.Add(-m.config.Window))
	m.dropIfEmptyLocked(key, e)
	if len(e.requests) >= m.config.MaxRequests {
		return Decision{Allowed: false, RetryAfter: retryAfter(e.requests[0], now, m.config.Window)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Record appends the current time to key's window.
func (m *MemoryLimiter) Record(_ context.Context, key string) error {
	now := m.now()
	for {
		value, _ := m.store.LoadOrStore(key, &entry{})
		e := value.(*entry)

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.requests = append(pruneBefore(e.requests, now.Add(-m.config.Window)), now)
		e.mu.Unlock()
		return nil
	}
}

// Usage returns the current window occupancy for key.
func (m *MemoryLimiter) Usage(_ context.Context, key string) (Usage, error) {
	u := Usage{Max: m.config.MaxRequests, WindowSeconds: int(m.config.Window / time.Second)}

	value, ok := m.store.Load(key)
	if !ok {
		return u, nil
	}

	e := value.(*entry)
	e.mu.Lock()
	e.requests = pruneBefore(e.requests, m.now().Add(-m.config.Window))
	u.Used = len(e.requests)
	m.dropIfEmptyLocked(key, e)
	e.mu.Unlock()
	return u, nil
}

// Reset clears key, or every key when key is empty.
func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	if key == "" {
		m.store.Range(func(k, _ any) bool {
			m.store.Delete(k)
			return true
		})
		return nil
	}
	m.store.Delete(key)
	return nil
}

// dropIfEmptyLocked removes e from the store once its window is empty.
// The caller holds e.mu.
func (m *MemoryLimiter) dropIfEmptyLocked(key string, e *entry) {
	if len(e.requests) > 0 || e.removed {
		return
	}
	e.removed = true
	m.store.CompareAndDelete(key, e)
}

// pruneBefore drops the prefix of requests older than cutoff.
// Timestamps are appended in order, so the scan stops at the first survivor.
func pruneBefore(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && requests[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return requests
	}
	return append(requests[:0], requests[i:]...)
}
