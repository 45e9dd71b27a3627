// Package deepseek 提供 DeepSeek LLM 供应商实现。
// DeepSeek API 兼容 OpenAI 格式，只允许使用其自有模型。
package deepseek

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/llm/openai"
)

// ProviderName 是 DeepSeek 供应商的名称标识符
const ProviderName = "deepseek"

const (
	// ModelChat 通用对话模型，也是默认模型。
	ModelChat = "deepseek-chat"
	// ModelReasoner 推理模型。
	ModelReasoner = "deepseek-reasoner"
)

// AllowedModels DeepSeek 支持的模型列表。
var AllowedModels = []string{ModelChat, ModelReasoner}

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *openai.Config {
	return &openai.Config{
		Name:       ProviderName,
		BaseURL:    "https://api.deepseek.com",
		ChatPath:   "/v1/chat/completions",
		ModelsPath: "/v1/models",
		ChatModel:  ModelChat,
		Timeout:    30 * time.Second,
	}
}

// NormalizeModel 返回受支持的模型名称，未知名称回退到默认模型。
func NormalizeModel(name string) string {
	for _, m := range AllowedModels {
		if name == m {
			return name
		}
	}
	return ModelChat
}

// Provider DeepSeek 供应商实现。
type Provider struct {
	*openai.Provider
}

var _ llm.ChatProvider = (*Provider)(nil)

// NewProvider 从配置 map 创建 DeepSeek 供应商。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()
	openai.ApplyConfigMap(cfg, configMap)
	cfg.ChatModel = NormalizeModel(cfg.ChatModel)

	if cfg.APIKey == "" {
		return nil, errors.New("deepseek: api_key is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 DeepSeek 供应商。
func NewProviderWithConfig(cfg *openai.Config) *Provider {
	return &Provider{Provider: openai.NewProviderWithConfig(cfg)}
}

// Chat 在发送前把模型名称规范化为 DeepSeek 支持的模型。
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	normalized := *req
	normalized.Model = NormalizeModel(req.Model)
	return p.Provider.Chat(ctx, &normalized)
}
