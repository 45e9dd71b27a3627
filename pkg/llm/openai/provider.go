// Package openai 提供 OpenAI 兼容协议的 Chat 供应商实现。
// 同时作为其他兼容供应商（如 DeepSeek）的底层客户端。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/ai-router/pkg/llm/openai"
//
//	provider, err := llm.NewChatProvider("openai", map[string]any{
//	    "api_key": "your-api-key",
//	})
//	resp, err := provider.Chat(ctx, &llm.ChatRequest{
//	    Model:    "gpt-4o-mini",
//	    Messages: []llm.Message{{Role: llm.RoleUser, Content: "你好"}},
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 兼容供应商配置。
type Config struct {
	// Name 供应商名称，兼容供应商复用本实现时覆盖。
	Name string `json:"name" mapstructure:"name"`

	// BaseURL API 基础地址（不含路径）。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// ChatPath 补全接口路径。
	ChatPath string `json:"chat_path" mapstructure:"chat_path"`

	// ModelsPath 模型列表接口路径，用于健康检查。
	ModelsPath string `json:"models_path" mapstructure:"models_path"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// ChatModel 请求未指定模型时使用的默认模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Timeout 单次请求超时时间，超时视为失败。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Name:       ProviderName,
		BaseURL:    "https://api.openai.com",
		ChatPath:   "/v1/chat/completions",
		ModelsPath: "/v1/models",
		ChatModel:  "gpt-4o-mini",
		Timeout:    30 * time.Second,
	}
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

var _ llm.ChatProvider = (*Provider)(nil)

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()
	ApplyConfigMap(cfg, configMap)

	if cfg.APIKey == "" {
		return nil, errors.New("openai: api_key is required")
	}

	return NewProviderWithConfig(cfg), nil
}

// ApplyConfigMap 将通用配置 map 覆盖到 cfg 上，空值忽略。
func ApplyConfigMap(cfg *Config, configMap map[string]any) {
	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.config.Name
}

// DefaultModel 返回默认模型名称。
func (p *Provider) DefaultModel() string {
	return p.config.ChatModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest OpenAI chat API 请求体。
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatResponse OpenAI chat API 响应体。
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat 发送一次补全请求。
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.ChatModel
	}

	messages := make([]chatMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.url(p.config.ChatPath), p.headers(), body, &resp); err != nil {
		return nil, fmt.Errorf("%s: chat request failed: %w", p.config.Name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", p.config.Name, llm.ErrEmptyResponse)
	}

	return &llm.ChatResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck 通过模型列表接口检查连通性。
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(p.config.ModelsPath), nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", p.config.Name, err)
	}
	for k, v := range p.headers() {
		req.Header.Set(k, v)
	}
	if err := p.client.DoJSON(req, nil); err != nil {
		return fmt.Errorf("%s: health check failed: %w", p.config.Name, err)
	}
	return nil
}

func (p *Provider) url(path string) string {
	return strings.TrimRight(p.config.BaseURL, "/") + path
}

func (p *Provider) headers() map[string]string {
	h := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	if p.config.Organization != "" {
		h["OpenAI-Organization"] = p.config.Organization
	}
	return h
}
