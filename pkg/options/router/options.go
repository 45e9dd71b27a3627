// Package router 提供意图路由配置项。
package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// WebhookOptions 把一个意图转发到下游 HTTP 服务，只能通过配置文件设置。
type WebhookOptions struct {
	Intent       string            `json:"intent" mapstructure:"intent"`
	Module       string            `json:"module" mapstructure:"module"`
	Description  string            `json:"description" mapstructure:"description"`
	Parameters   string            `json:"parameters" mapstructure:"parameters"`
	ExplainCodes []string          `json:"explain-codes" mapstructure:"explain-codes"`
	InputParam   string            `json:"input-param" mapstructure:"input-param"`
	URL          string            `json:"url" mapstructure:"url"`
	Headers      map[string]string `json:"headers" mapstructure:"headers"`
	Rules        map[string]string `json:"rules" mapstructure:"rules"`
	Timeout      time.Duration     `json:"timeout" mapstructure:"timeout"`
}

// Options 路由配置。
type Options struct {
	ConfidenceThreshold     float64 `json:"confidence-threshold" mapstructure:"confidence-threshold"`
	ChatConfidenceThreshold float64 `json:"chat-confidence-threshold" mapstructure:"chat-confidence-threshold"`
	MaxInputLength          int     `json:"max-input-length" mapstructure:"max-input-length"`
	ContextReplyLength      int     `json:"context-reply-length" mapstructure:"context-reply-length"`
	AuditInputLength        int     `json:"audit-input-length" mapstructure:"audit-input-length"`

	// EnabledModules 启动时启用的模块，ai_router 本身也在其中。
	EnabledModules []string `json:"enabled-modules" mapstructure:"enabled-modules"`
	// Admins 可以在运行时开关模块的用户 ID。
	Admins []int64 `json:"admins" mapstructure:"admins"`

	Webhooks []WebhookOptions `json:"webhooks" mapstructure:"webhooks"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		ConfidenceThreshold:     0.6,
		ChatConfidenceThreshold: 0.3,
		MaxInputLength:          4000,
		ContextReplyLength:      500,
		AuditInputLength:        500,
		EnabledModules:          []string{"ai_router"},
	}
}

// AddFlags 注册路由相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "router."
	fs.Float64Var(&o.ConfidenceThreshold, p+"confidence-threshold", o.ConfidenceThreshold, "Minimum confidence to invoke a module handler.")
	fs.Float64Var(&o.ChatConfidenceThreshold, p+"chat-confidence-threshold", o.ChatConfidenceThreshold, "Minimum confidence to answer general_chat.")
	fs.IntVar(&o.MaxInputLength, p+"max-input-length", o.MaxInputLength, "Input is truncated to this many characters before classification.")
	fs.IntVar(&o.ContextReplyLength, p+"context-reply-length", o.ContextReplyLength, "Replies stored in the conversation context are truncated to this length.")
	fs.IntVar(&o.AuditInputLength, p+"audit-input-length", o.AuditInputLength, "Input stored in the audit log is truncated to this length.")
	fs.StringSliceVar(&o.EnabledModules, p+"enabled-modules", o.EnabledModules, "Modules enabled at startup.")
	fs.Int64SliceVar(&o.Admins, p+"admins", o.Admins, "User IDs allowed to toggle modules.")
}

// Validate 校验路由配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("router.confidence-threshold must be in [0, 1]"))
	}
	if o.ChatConfidenceThreshold < 0 || o.ChatConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("router.chat-confidence-threshold must be in [0, 1]"))
	}
	if o.MaxInputLength <= 0 {
		errs = append(errs, fmt.Errorf("router.max-input-length must be positive"))
	}

	seen := make(map[string]struct{}, len(o.Webhooks))
	for i, w := range o.Webhooks {
		if w.Intent == "" || w.Module == "" {
			errs = append(errs, fmt.Errorf("router.webhooks[%d]: intent and module are required", i))
		}
		if !strings.HasPrefix(w.URL, "http://") && !strings.HasPrefix(w.URL, "https://") {
			errs = append(errs, fmt.Errorf("router.webhooks[%d]: url must be http(s)", i))
		}
		if _, dup := seen[w.Intent]; dup {
			errs = append(errs, fmt.Errorf("router.webhooks[%d]: duplicate intent %q", i, w.Intent))
		}
		seen[w.Intent] = struct{}{}
	}
	return errs
}
