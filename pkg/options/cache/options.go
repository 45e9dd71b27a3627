// Package cache 提供回答缓存配置项。
package cache

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 缓存后端。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options 回答缓存配置，redis 后端使用顶层 redis 连接。
type Options struct {
	// Backend 缓存后端。
	Backend string `json:"backend" mapstructure:"backend"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Backend:   BackendMemory,
		KeyPrefix: "ai-router:rag:answer:",
	}
}

// AddFlags 注册缓存相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Answer cache backend (memory, redis).")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Answer cache key prefix.")
}

// Validate 校验缓存配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Backend != BackendMemory && o.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", o.Backend))
	}
	return errs
}

// UsesRedis 是否需要 redis 连接。
func (o *Options) UsesRedis() bool {
	return o.Backend == BackendRedis
}
