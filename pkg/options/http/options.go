// Package http 提供 HTTP 服务配置项。
package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options HTTP 服务配置。
type Options struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout  time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// Mode gin 运行模式（debug, release, test）。
	Mode string `json:"mode" mapstructure:"mode"`
	// MaxBodySize JSON 请求体上限，文档上传单独按 rag.max-file-size-mb 限制。
	MaxBodySize int64 `json:"max-body-size" mapstructure:"max-body-size"`
	// MetricsPath Prometheus 指标路径，为空时不暴露。
	MetricsPath string `json:"metrics-path" mapstructure:"metrics-path"`
	// ShutdownTimeout 优雅退出等待时间。
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     60 * time.Second,
		Mode:            gin.ReleaseMode,
		MaxBodySize:     1 << 20,
		MetricsPath:     "/metrics",
		ShutdownTimeout: 30 * time.Second,
	}
}

// AddFlags 注册 HTTP 相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server listen address.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "HTTP server read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "HTTP server write timeout.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "HTTP server idle timeout.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug, release, test).")
	fs.Int64Var(&o.MaxBodySize, p+"max-body-size", o.MaxBodySize, "Maximum JSON request body size in bytes.")
	fs.StringVar(&o.MetricsPath, p+"metrics-path", o.MetricsPath, "Prometheus metrics path, empty to disable.")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
}

// Validate 校验 HTTP 配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 || o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout and http.write-timeout must be positive"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode %q is invalid", o.Mode))
	}
	if o.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("http.max-body-size must be positive"))
	}
	return errs
}
