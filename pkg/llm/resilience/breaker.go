// Package resilience 提供保护模型供应商的熔断器。
//
// 熔断器不做重试：连续失败达到阈值后直接拒绝请求，由调用方降级处理。
// OPEN → HALF_OPEN 的转换只在 State/IsAvailable/Allow/StatusInfo 这些访问器中惰性发生，
// 新的入口必须通过访问器读取状态，不能直接读取字段。
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitOpen 熔断器处于打开状态，或半开状态下已有试探请求在途。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 熔断器状态。
type State int

const (
	// StateClosed 关闭状态（正常）。
	StateClosed State = iota
	// StateOpen 打开状态（熔断）。
	StateOpen
	// StateHalfOpen 半开状态（试探）。
	StateHalfOpen
)

// String 返回状态字符串。
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置。
type Config struct {
	// FailureThreshold 触发熔断的连续失败次数。
	FailureThreshold int `json:"failure-threshold" mapstructure:"failure-threshold"`
	// RecoveryTimeout 打开后进入半开状态前的等待时间。
	RecoveryTimeout time.Duration `json:"recovery" mapstructure:"recovery"`
	// HalfOpenSingleTrial 半开状态下 Allow 只放行一个在途试探请求。
	HalfOpenSingleTrial bool `json:"half-open-single-trial" mapstructure:"half-open-single-trial"`
}

// DefaultConfig 返回默认熔断器配置。
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		RecoveryTimeout:  300 * time.Second,
	}
}

// Status 熔断器状态快照。
type Status struct {
	State            string `json:"state"`
	FailureCount     int    `json:"failure_count"`
	FailureThreshold int    `json:"failure_threshold"`
	RecoverySeconds  int    `json:"recovery_seconds"`
	// RecoveryRemainingSeconds 仅在 OPEN 状态下返回。
	RecoveryRemainingSeconds *int `json:"recovery_remaining_seconds,omitempty"`
}

// Option 熔断器选项。
type Option func(*CircuitBreaker)

// WithClock 替换时间源，便于测试。
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChangeHook 在状态变化时回调（在持锁状态下调用，回调中不能再访问熔断器）。
func WithStateChangeHook(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onChange = fn
	}
}

// CircuitBreaker 三态熔断器。
type CircuitBreaker struct {
	mu       sync.Mutex
	config   Config
	state    State
	failures int
	openedAt time.Time
	trial    bool

	now      func() time.Time
	onChange func(from, to State)
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(config *Config, opts ...Option) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultConfig().RecoveryTimeout
	}

	cb := &CircuitBreaker{
		config: cfg,
		state:  StateClosed,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// State 返回当前状态，必要时先完成 OPEN → HALF_OPEN 转换。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

// IsAvailable 当前状态不是 OPEN 时返回 true。
func (cb *CircuitBreaker) IsAvailable() bool {
	return cb.State() != StateOpen
}

// Allow 与 IsAvailable 相同，但在启用 HalfOpenSingleTrial 时，
// 半开状态下只放行一个试探请求，直到该请求通过 RecordSuccess/RecordFailure 给出结论。
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.config.HalfOpenSingleTrial {
			if cb.trial {
				return ErrCircuitOpen
			}
			cb.trial = true
		}
	}
	return nil
}

// Execute 经熔断器执行 fn：未放行时返回 ErrCircuitOpen，fn 的结果记为成功或失败。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// RecordSuccess 记录一次成功：计数清零，状态回到 CLOSED。
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trial = false
	if cb.state != StateClosed {
		if cb.state == StateHalfOpen {
			logger.Infow("circuit breaker closed, provider recovered")
		}
		cb.transitionLocked(StateClosed)
	}
}

// RecordFailure 记录一次失败。半开状态下立即重新打开；否则连续失败达到阈值时打开。
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.trial = false

	switch {
	case cb.state == StateHalfOpen:
		cb.openedAt = cb.now()
		logger.Warnw("circuit breaker re-opened, trial request failed",
			"failures", cb.failures,
		)
		cb.transitionLocked(StateOpen)
	case cb.failures >= cb.config.FailureThreshold:
		cb.openedAt = cb.now()
		if cb.state != StateOpen {
			logger.Warnw("circuit breaker opening",
				"failures", cb.failures,
				"threshold", cb.config.FailureThreshold,
				"recovery", cb.config.RecoveryTimeout.String(),
			)
			cb.transitionLocked(StateOpen)
		}
	}
}

// Reset 强制回到 CLOSED 并清空计数。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.trial = false
	cb.openedAt = time.Time{}
	if cb.state != StateClosed {
		cb.transitionLocked(StateClosed)
	}
	logger.Infow("circuit breaker reset")
}

// StatusInfo 返回状态快照。
func (cb *CircuitBreaker) StatusInfo() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentLocked()
	st := Status{
		State:            state.String(),
		FailureCount:     cb.failures,
		FailureThreshold: cb.config.FailureThreshold,
		RecoverySeconds:  int(cb.config.RecoveryTimeout / time.Second),
	}
	if state == StateOpen {
		remaining := cb.config.RecoveryTimeout - cb.now().Sub(cb.openedAt)
		if remaining < 0 {
			remaining = 0
		}
		secs := int(remaining / time.Second)
		st.RecoveryRemainingSeconds = &secs
	}
	return st
}

// currentLocked 惰性执行 OPEN → HALF_OPEN 转换，调用方需持有锁。
func (cb *CircuitBreaker) currentLocked() State {
	if cb.state == StateOpen {
		elapsed := cb.now().Sub(cb.openedAt)
		if elapsed >= cb.config.RecoveryTimeout {
			logger.Infow("circuit breaker half-open",
				"elapsed", elapsed.String(),
				"recovery", cb.config.RecoveryTimeout.String(),
			)
			cb.trial = false
			cb.transitionLocked(StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	if cb.onChange != nil && from != to {
		cb.onChange(from, to)
	}
}
