// Package conversation 提供对话上下文配置项。
package conversation

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 对话上下文配置。
type Options struct {
	// MaxMessages 每个用户保留的最近消息数。
	MaxMessages int `json:"max-messages" mapstructure:"max-messages"`
	// TTL 最后一次活动后上下文的存活时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		MaxMessages: 6,
		TTL:         600 * time.Second,
	}
}

// AddFlags 注册上下文相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "context."
	fs.IntVar(&o.MaxMessages, p+"max-messages", o.MaxMessages, "Messages kept per user.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Context lifetime after the last activity.")
}

// Validate 校验上下文配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxMessages <= 0 {
		errs = append(errs, fmt.Errorf("context.max-messages must be positive"))
	}
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("context.ttl must be positive"))
	}
	return errs
}
