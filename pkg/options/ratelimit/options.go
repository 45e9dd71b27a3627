// Package ratelimit 提供限流配置项。
package ratelimit

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 限流后端。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options 限流配置。
type Options struct {
	// Backend 计数存储，redis 后端在多实例间共享窗口。
	Backend string `json:"backend" mapstructure:"backend"`
	// MaxRequests 每个用户窗口内允许的分类请求数。
	MaxRequests int `json:"max-requests" mapstructure:"max-requests"`
	// Window 滑动窗口长度。
	Window time.Duration `json:"window" mapstructure:"window"`
	// KeyPrefix redis 键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// APIMaxRequests 知识库 HTTP 接口按客户端 IP 的限流，0 表示不限流。
	APIMaxRequests int `json:"api-max-requests" mapstructure:"api-max-requests"`
	// APIWindow 知识库 HTTP 接口的限流窗口。
	APIWindow time.Duration `json:"api-window" mapstructure:"api-window"`
}

// NewOptions 返回默认配置：每分钟 10 次。
func NewOptions() *Options {
	return &Options{
		Backend:        BackendMemory,
		MaxRequests:    10,
		Window:         60 * time.Second,
		KeyPrefix:      "ai-router:ratelimit:",
		APIMaxRequests: 60,
		APIWindow:      60 * time.Second,
	}
}

// AddFlags 注册限流相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rate-limit."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Rate limiter backend (memory, redis).")
	fs.IntVar(&o.MaxRequests, p+"max-requests", o.MaxRequests, "Classification requests allowed per user per window.")
	fs.DurationVar(&o.Window, p+"window", o.Window, "Rate limit sliding window.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Redis key prefix.")
	fs.IntVar(&o.APIMaxRequests, p+"api-max-requests", o.APIMaxRequests, "Knowledge base API requests allowed per client IP per window, 0 to disable.")
	fs.DurationVar(&o.APIWindow, p+"api-window", o.APIWindow, "Knowledge base API rate limit window.")
}

// Validate 校验限流配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Backend != BackendMemory && o.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("rate-limit.backend %q is not supported", o.Backend))
	}
	if o.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("rate-limit.max-requests must be positive"))
	}
	if o.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate-limit.window must be positive"))
	}
	if o.APIMaxRequests < 0 {
		errs = append(errs, fmt.Errorf("rate-limit.api-max-requests must not be negative"))
	}
	if o.APIMaxRequests > 0 && o.APIWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate-limit.api-window must be positive"))
	}
	return errs
}

// UsesRedis 是否需要 redis 连接。
func (o *Options) UsesRedis() bool {
	return o.Backend == BackendRedis
}
