// Package breaker 提供熔断器配置项。
package breaker

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 熔断器配置。
type Options struct {
	FailureThreshold    int           `json:"failure-threshold" mapstructure:"failure-threshold"`
	Recovery            time.Duration `json:"recovery" mapstructure:"recovery"`
	HalfOpenSingleTrial bool          `json:"half-open-single-trial" mapstructure:"half-open-single-trial"`
}

// NewOptions 返回默认配置：连续 5 次失败熔断，300 秒后半开。
func NewOptions() *Options {
	return &Options{
		FailureThreshold: 5,
		Recovery:         300 * time.Second,
	}
}

// AddFlags 注册熔断相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "circuit-breaker."
	fs.IntVar(&o.FailureThreshold, p+"failure-threshold", o.FailureThreshold, "Consecutive provider failures that open the circuit.")
	fs.DurationVar(&o.Recovery, p+"recovery", o.Recovery, "Time the circuit stays open before a trial request.")
	fs.BoolVar(&o.HalfOpenSingleTrial, p+"half-open-single-trial", o.HalfOpenSingleTrial, "Admit a single in-flight trial request while half-open.")
}

// Validate 校验熔断配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("circuit-breaker.failure-threshold must be positive"))
	}
	if o.Recovery <= 0 {
		errs = append(errs, fmt.Errorf("circuit-breaker.recovery must be positive"))
	}
	return errs
}
