// Package ratelimit provides per-key sliding-window admission control.
//
// Admission is split in two steps: Check decides whether a request may
// proceed, Record charges it. Callers record only requests that actually
// consumed upstream resources, so locally short-circuited requests are free.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a Check.
type Decision struct {
	Allowed bool `json:"allowed"`
	// RetryAfter is the number of seconds until the oldest request leaves
	// the window. Zero when Allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Usage describes the current window occupancy for a key.
type Usage struct {
	Used          int `json:"used"`
	Max           int `json:"max"`
	WindowSeconds int `json:"window_seconds"`
}

// Limiter defines the interface for sliding-window rate limiting.
type Limiter interface {
	// Check prunes expired entries and reports whether another request fits.
	Check(ctx context.Context, key string) (Decision, error)

	// Record charges one request to key at the current time.
	Record(ctx context.Context, key string) error

	// Usage returns the number of requests currently in the window.
	Usage(ctx context.Context, key string) (Usage, error)

	// Reset clears key, or every key when key is empty.
	Reset(ctx context.Context, key string) error
}

// Config defines the limiter configuration.
type Config struct {
	// MaxRequests is the maximum number of recorded requests per window.
	MaxRequests int
	// Window is the sliding window length.
	Window time.Duration
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 10,
		Window:      60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRequests <= 0 {
		c.MaxRequests = def.MaxRequests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	return c
}

// retryAfter returns the whole seconds until oldest leaves the window, at least 1.
func retryAfter(oldest, now time.Time, window time.Duration) int {
	secs := int(oldest.Add(window).Sub(now)/time.Second) + 1
	if secs < 1 {
		return 1
	}
	return secs
}
