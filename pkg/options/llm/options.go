// Package llm 提供模型供应商配置项。
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 模型供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（deepseek, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// ClassificationModel 意图分类使用的模型。
	ClassificationModel string `json:"classification-model" mapstructure:"classification-model"`

	// ResponseModel 自由对话和知识库回答使用的模型。
	ResponseModel string `json:"response-model" mapstructure:"response-model"`

	// AllowedModels 模型白名单，为空时 deepseek 使用内置白名单。
	AllowedModels []string `json:"allowed-models" mapstructure:"allowed-models"`

	// MaxTokens 单次补全的最大 token 数。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Timeout 单次请求超时时间，超时视为失败，不重试。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewProviderOptions 创建默认供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:            "deepseek",
		ClassificationModel: "deepseek-chat",
		ResponseModel:       "deepseek-chat",
		MaxTokens:           1024,
		Timeout:             30 * time.Second,
	}
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"chat_model":   o.ResponseModel,
		"timeout":      o.Timeout,
		"organization": o.Organization,
	}
}

// AddFlags 注册供应商相关 flag。
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (deepseek, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.ClassificationModel, p+"classification-model", o.ClassificationModel, "Model used for intent classification.")
	fs.StringVar(&o.ResponseModel, p+"response-model", o.ResponseModel, "Model used for chat and knowledge base answers.")
	fs.StringSliceVar(&o.AllowedModels, p+"allowed-models", o.AllowedModels, "Allowed model names.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens per completion.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "LLM organization ID (optional).")
}

// Validate 校验供应商配置。
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm.provider is required"))
	}
	if o.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.api-key is required"))
	}
	if o.ClassificationModel == "" || o.ResponseModel == "" {
		errs = append(errs, fmt.Errorf("llm.classification-model and llm.response-model are required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be positive"))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max-tokens must not be negative"))
	}
	return errs
}

// Complete 补齐默认值。
func (o *ProviderOptions) Complete() error {
	if o.ResponseModel == "" {
		o.ResponseModel = o.ClassificationModel
	}
	if o.ClassificationModel == "" {
		o.ClassificationModel = o.ResponseModel
	}
	return nil
}
