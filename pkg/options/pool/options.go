// Package pool 提供后台任务池配置项。
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 后台任务池配置，用于审计日志、查询日志和目录导入。
type Options struct {
	Capacity         int           `json:"capacity" mapstructure:"capacity"`
	ExpiryDuration   time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	MaxBlockingTasks int           `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
	// ReleaseTimeout 关闭时等待在途任务的最长时间。
	ReleaseTimeout time.Duration `json:"release-timeout" mapstructure:"release-timeout"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Capacity:         50,
		ExpiryDuration:   60 * time.Second,
		MaxBlockingTasks: 100,
		ReleaseTimeout:   5 * time.Second,
	}
}

// AddFlags 注册任务池相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Background worker pool capacity.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.IntVar(&o.MaxBlockingTasks, p+"max-blocking-tasks", o.MaxBlockingTasks, "Maximum queued tasks.")
	fs.DurationVar(&o.ReleaseTimeout, p+"release-timeout", o.ReleaseTimeout, "Time to wait for in-flight tasks at shutdown.")
}

// Validate 校验任务池配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Capacity <= 0 {
		return []error{fmt.Errorf("pool.capacity must be positive")}
	}
	return nil
}
