package provider

import (
	"context"
	"slices"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/pkg/infra/tracing"
	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/llm/deepseek"
	_ "github.com/kart-io/ai-router/pkg/llm/openai"
)

const (
	classifyTemperature = 0.1
	chatTemperature     = 0.7
	defaultMaxTokens    = 1024
)

// ModelProvider 路由使用的模型能力。每次调用只发起一次网络请求，不做重试。
type ModelProvider interface {
	// Classify 对对话窗口做意图分类。网络或协议错误以 error 返回，
	// 模型输出无法解析时返回 unknown 结果而不是 error。
	Classify(ctx context.Context, window []llm.Message, systemPrompt string) (*ClassificationResult, error)

	// Chat 生成自由文本回复。
	Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error)

	// Name 供应商名称。
	Name() string

	// ModelFor 返回指定用途实际使用的模型名称。
	ModelFor(purpose Purpose) string

	// HealthCheck 检查供应商是否可达。
	HealthCheck(ctx context.Context) error
}

// Config 模型选择配置。
type Config struct {
	ClassificationModel string
	ResponseModel       string
	// AllowedModels 为空时不限制模型名称。
	AllowedModels []string
	// DefaultModel 模型名称不在 AllowedModels 中时使用。
	DefaultModel string
	MaxTokens    int
	// Timeout 单次调用的截止时间，0 表示只依赖调用方 ctx 和底层客户端超时。
	Timeout time.Duration
}

// LLMProvider 基于 llm.ChatProvider 的 ModelProvider 实现。
type LLMProvider struct {
	chat   llm.ChatProvider
	config Config
	now    func() time.Time
}

var _ ModelProvider = (*LLMProvider)(nil)

// NewLLMProvider 创建 ModelProvider。
func NewLLMProvider(chat llm.ChatProvider, config Config) *LLMProvider {
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	return &LLMProvider{
		chat:   chat,
		config: config,
		now:    time.Now,
	}
}

// Name 返回供应商名称。
func (p *LLMProvider) Name() string {
	return p.chat.Name()
}

// New 通过 llm 注册表按名称创建供应商。
// deepseek 未配置白名单时自动限制为其支持的模型。
func New(name string, configMap map[string]any, config Config) (*LLMProvider, error) {
	chat, err := llm.NewChatProvider(name, configMap)
	if err != nil {
		return nil, err
	}
	if name == deepseek.ProviderName && len(config.AllowedModels) == 0 {
		config.AllowedModels = deepseek.AllowedModels
		config.DefaultModel = deepseek.ModelChat
	}
	return NewLLMProvider(chat, config), nil
}

// ModelFor 返回经过白名单规范化的模型名称。
func (p *LLMProvider) ModelFor(purpose Purpose) string {
	name := p.config.ResponseModel
	if purpose == PurposeClassification {
		name = p.config.ClassificationModel
	}
	return p.normalize(name)
}

func (p *LLMProvider) normalize(name string) string {
	if len(p.config.AllowedModels) == 0 || slices.Contains(p.config.AllowedModels, name) {
		return name
	}
	return p.config.DefaultModel
}

// Classify 使用低温度调用分类模型并解析结果。
func (p *LLMProvider) Classify(ctx context.Context, window []llm.Message, systemPrompt string) (*ClassificationResult, error) {
	start := p.now()
	content, err := p.call(ctx, PurposeClassification, window, systemPrompt, classifyTemperature)
	elapsed := p.now().Sub(start).Milliseconds()
	if err != nil {
		logger.Errorw("classification request failed",
			"provider", p.Name(),
			"latency_ms", elapsed,
			"error", err.Error(),
		)
		return nil, err
	}

	result := ParseClassification(content)
	result.LatencyMs = elapsed
	tracing.AddSpanAttributes(ctx,
		tracing.String(tracing.AttrIntent, result.Intent),
		tracing.Float64(tracing.AttrConfidence, result.Confidence),
		tracing.String(tracing.AttrExplainCode, result.ExplainCode),
	)
	return result, nil
}

// Chat 使用回复模型生成文本。
func (p *LLMProvider) Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error) {
	content, err := p.call(ctx, PurposeResponse, messages, systemPrompt, chatTemperature)
	if err != nil {
		logger.Errorw("chat request failed", "provider", p.Name(), "error", err.Error())
		return "", err
	}
	return content, nil
}

// HealthCheck 透传到底层供应商。
func (p *LLMProvider) HealthCheck(ctx context.Context) error {
	return p.chat.HealthCheck(ctx)
}

func (p *LLMProvider) call(ctx context.Context, purpose Purpose, messages []llm.Message, systemPrompt string, temperature float64) (string, error) {
	model := p.ModelFor(purpose)
	ctx, span := tracing.StartSpan(ctx, "llm."+string(purpose),
		tracing.String(tracing.AttrProvider, p.Name()),
		tracing.String(tracing.AttrModel, model),
		tracing.String(tracing.AttrPurpose, string(purpose)),
	)
	defer span.End()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	resp, err := p.chat.Chat(ctx, &llm.ChatRequest{
		Model:       model,
		Messages:    llm.WithSystemPrompt(systemPrompt, messages),
		Temperature: temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	return resp.Content, nil
}
