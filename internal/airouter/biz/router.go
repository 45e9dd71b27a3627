// Package biz 实现 AI 路由：准入控制、意图分类、按意图分发以及闲聊回退。
package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/ai-router/internal/airouter/prompts"
	"github.com/kart-io/ai-router/internal/airouter/provider"
	"github.com/kart-io/ai-router/internal/airouter/store"
	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/internal/pkg/conversation"
	"github.com/kart-io/ai-router/internal/pkg/metrics"
	"github.com/kart-io/ai-router/internal/pkg/rag/textutil"
	"github.com/kart-io/ai-router/pkg/id"
	infralog "github.com/kart-io/ai-router/pkg/infra/logger"
	"github.com/kart-io/ai-router/pkg/infra/pool"
	"github.com/kart-io/ai-router/pkg/infra/ratelimit"
	"github.com/kart-io/ai-router/pkg/infra/tracing"
	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/llm/resilience"
)

// Status 一次路由的结果。
type Status string

const (
	StatusDisabled       Status = "disabled"
	StatusRateLimited    Status = "rate_limited"
	StatusCircuitOpen    Status = "circuit_open"
	StatusRouted         Status = "routed"
	StatusChat           Status = "chat"
	StatusModuleDisabled Status = "module_disabled"
	StatusLowConfidence  Status = "low_confidence"
	StatusError          Status = "error"
)

// MessageModuleDisabled 意图所属模块关闭时的回复。
const MessageModuleDisabled = "This feature is currently disabled."

// ExplainProviderError 分类请求失败时写入审计日志的 explain 码。
const ExplainProviderError = "PROVIDER_ERROR"

const (
	auditTimeout   = 5 * time.Second
	chatPathRAG    = "rag"
	chatPathLLM    = "chat"
	chatPathDirect = "direct_answer"
)

// Config 路由配置。
type Config struct {
	ConfidenceThreshold     float64 `json:"confidence-threshold" mapstructure:"confidence-threshold"`
	ChatConfidenceThreshold float64 `json:"chat-confidence-threshold" mapstructure:"chat-confidence-threshold"`
	MaxInputLength          int     `json:"max-input-length" mapstructure:"max-input-length"`
	// ContextReplyLength 写入上下文的回复最大长度。
	ContextReplyLength int `json:"context-reply-length" mapstructure:"context-reply-length"`
	// AuditInputLength 审计日志中输入文本的最大长度。
	AuditInputLength int `json:"audit-input-length" mapstructure:"audit-input-length"`
	// RateLimit 仅用于状态展示，实际限流由注入的 Limiter 决定。
	RateLimit ratelimit.Config `json:"-" mapstructure:"-"`
}

// DefaultConfig 返回默认路由配置。
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:     0.6,
		ChatConfidenceThreshold: 0.3,
		MaxInputLength:          4000,
		ContextReplyLength:      500,
		AuditInputLength:        500,
		RateLimit:               ratelimit.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.ChatConfidenceThreshold <= 0 || c.ChatConfidenceThreshold > c.ConfidenceThreshold {
		c.ChatConfidenceThreshold = def.ChatConfidenceThreshold
	}
	if c.MaxInputLength <= 0 {
		c.MaxInputLength = def.MaxInputLength
	}
	if c.ContextReplyLength <= 0 {
		c.ContextReplyLength = def.ContextReplyLength
	}
	if c.AuditInputLength <= 0 {
		c.AuditInputLength = def.AuditInputLength
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		c.RateLimit = def.RateLimit
	}
	return c
}

// Knowledge 知识库问答能力，found 为 false 表示知识库没有相关内容。
type Knowledge interface {
	Answer(ctx context.Context, question string, userID int64) (answer string, found bool, err error)
}

// RouterStatus 路由运行状态。
type RouterStatus struct {
	CircuitBreaker          resilience.Status `json:"circuit_breaker"`
	Provider                string            `json:"provider"`
	ClassificationModel     string            `json:"classification_model"`
	ResponseModel           string            `json:"response_model"`
	ConfidenceThreshold     float64           `json:"confidence_threshold"`
	ChatConfidenceThreshold float64           `json:"chat_confidence_threshold"`
	RateLimit               RateLimitStatus   `json:"rate_limit"`
	KnowledgeEnabled        bool              `json:"knowledge_enabled"`
	EnabledModules          []string          `json:"enabled_modules"`
	Intents                 []string          `json:"intents"`
	ActiveContexts          int               `json:"active_contexts"`
}

// RateLimitStatus 限流配置。
type RateLimitStatus struct {
	Max           int `json:"max"`
	WindowSeconds int `json:"window_seconds"`
}

// Router AI 路由协调器，可并发使用。
type Router struct {
	config    Config
	provider  provider.ModelProvider
	registry  *Registry
	gate      ModuleGate
	limiter   ratelimit.Limiter
	breaker   *resilience.CircuitBreaker
	contexts  *conversation.Manager
	knowledge Knowledge
	logs      store.LogStore
	pool      *pool.Pool
	metrics   *metrics.Metrics
	ids       *id.Generator
	now       func() time.Time
}

// Option 配置 Router。
type Option func(*Router)

// WithKnowledge 启用知识库回答，k 为 nil 时忽略。
func WithKnowledge(k Knowledge) Option {
	return func(r *Router) {
		r.knowledge = k
	}
}

// WithLogStore 设置审计日志存储。
func WithLogStore(s store.LogStore) Option {
	return func(r *Router) {
		r.logs = s
	}
}

// WithPool 设置异步写审计日志的协程池。
func WithPool(p *pool.Pool) Option {
	return func(r *Router) {
		r.pool = p
	}
}

// WithMetrics 设置指标。
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithIDGenerator 设置请求 ID 生成器。
func WithIDGenerator(g *id.Generator) Option {
	return func(r *Router) {
		r.ids = g
	}
}

// WithClock 替换时间源。
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// NewRouter 创建路由器。
func NewRouter(
	config Config,
	modelProvider provider.ModelProvider,
	registry *Registry,
	gate ModuleGate,
	limiter ratelimit.Limiter,
	breaker *resilience.CircuitBreaker,
	contexts *conversation.Manager,
	opts ...Option,
) *Router {
	r := &Router{
		config:   config.withDefaults(),
		provider: modelProvider,
		registry: registry,
		gate:     gate,
		limiter:  limiter,
		breaker:  breaker,
		contexts: contexts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ids == nil {
		r.ids = id.NewGenerator()
	}
	return r
}

// Route 处理一条用户消息，reply 为 nil 表示不需要回复。
func (r *Router) Route(ctx context.Context, text string, userID int64) (*string, Status) {
	start := r.now()
	requestID := id.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = r.ids.New()
		ctx = id.WithRequestID(ctx, requestID)
	}

	ctx, span := tracing.StartSpan(ctx, "airouter.route",
		tracing.Int64(tracing.AttrUserID, userID),
		tracing.String(tracing.AttrRequestID, requestID),
	)
	defer span.End()
	ctx = infralog.WithUserID(infralog.WithRequestID(infralog.ExtractOpenTelemetryFields(ctx), requestID), userID)

	reply, status := r.route(ctx, requestID, text, userID)

	elapsed := r.now().Sub(start)
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.AttrStatus, string(status)))
	r.metrics.RecordRoute(string(status), elapsed)
	infralog.FromContext(ctx).Infow("route finished",
		"status", string(status),
		"latency_ms", elapsed.Milliseconds(),
	)
	return reply, status
}

func (r *Router) route(ctx context.Context, requestID, text string, userID int64) (*string, Status) {
	if !r.gate.IsModuleEnabled(ModuleAIRouter) {
		return nil, StatusDisabled
	}

	key := strconv.FormatInt(userID, 10)
	decision, err := r.limiter.Check(ctx, key)
	switch {
	case err != nil:
		infralog.FromContext(ctx).Warnw("rate limiter check failed, admitting request", "error", err.Error())
	case !decision.Allowed:
		msg := fmt.Sprintf("Too many requests. Try again in %d s.", decision.RetryAfter)
		return &msg, StatusRateLimited
	}

	if err := r.breaker.Allow(); err != nil {
		return nil, StatusCircuitOpen
	}

	text = textutil.TruncateString(text, r.config.MaxInputLength)
	window := append(r.contexts.LLMMessages(userID), llm.Message{Role: llm.RoleUser, Content: text})

	routable := r.gate.EnabledModules().Intersection(r.registry.Modules())
	systemPrompt := prompts.Classification(IntentSpecs(r.registry.Descriptors(routable)))

	classifyStart := r.now()
	result, err := r.provider.Classify(ctx, window, systemPrompt)
	classifyElapsed := r.now().Sub(classifyStart)
	if err != nil {
		r.breaker.RecordFailure()
		tracing.RecordError(ctx, err)
		infralog.FromContext(ctx).Errorw("classification failed", "error", err.Error())
		r.audit(ctx, &model.AIRouterLog{
			RequestID:   requestID,
			UserID:      userID,
			InputText:   text,
			ExplainCode: ExplainProviderError,
			Status:      string(StatusError),
			LatencyMs:   classifyElapsed.Milliseconds(),
		})
		return nil, StatusError
	}
	r.breaker.RecordSuccess()
	r.metrics.RecordClassification(r.provider.ModelFor(provider.PurposeClassification),
		result.Tier.String(), result.Confidence, classifyElapsed)

	if err := r.limiter.Record(ctx, key); err != nil {
		infralog.FromContext(ctx).Warnw("rate limiter record failed", "error", err.Error())
	}

	infralog.FromContext(ctx).Infow("request classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"explain_code", result.ExplainCode,
		"tier", result.Tier.String(),
	)

	reply, status := r.dispatch(ctx, result, text, window, userID)

	r.contexts.AddMessage(userID, llm.RoleUser, text)
	if reply != nil {
		r.contexts.AddMessage(userID, llm.RoleAssistant, textutil.TruncateString(*reply, r.config.ContextReplyLength))
	}

	latency := result.LatencyMs
	if latency == 0 {
		latency = classifyElapsed.Milliseconds()
	}
	r.audit(ctx, &model.AIRouterLog{
		RequestID:   requestID,
		UserID:      userID,
		InputText:   text,
		Intent:      result.Intent,
		Confidence:  result.Confidence,
		ExplainCode: result.ExplainCode,
		Status:      string(status),
		LatencyMs:   latency,
	})
	return reply, status
}

// dispatch 按顺序选择处理路径。
func (r *Router) dispatch(ctx context.Context, result *provider.ClassificationResult, text string, window []llm.Message, userID int64) (*string, Status) {
	chatThreshold := r.config.ChatConfidenceThreshold

	if answer, ok := result.DirectAnswer(); ok && result.Confidence >= chatThreshold {
		r.metrics.RecordChat(chatPathDirect, nil)
		return &answer, StatusChat
	}

	if h, ok := r.registry.Lookup(result.Intent); ok && result.Confidence >= r.config.ConfidenceThreshold {
		return r.execute(ctx, h, result, text, userID)
	}

	switch {
	case result.Intent == provider.IntentGeneralChat && result.Confidence >= chatThreshold:
		return r.chat(ctx, text, window, userID)
	case result.Confidence < chatThreshold:
		return nil, StatusLowConfidence
	case result.Intent != provider.IntentUnknown:
		return r.chat(ctx, text, window, userID)
	default:
		return nil, StatusLowConfidence
	}
}

func (r *Router) execute(ctx context.Context, h Handler, result *provider.ClassificationResult, text string, userID int64) (*string, Status) {
	desc := h.Descriptor()
	if !r.gate.IsModuleEnabled(desc.Module) {
		msg := MessageModuleDisabled
		return &msg, StatusModuleDisabled
	}

	params := Params(result.Parameters)
	if params == nil {
		params = Params{}
	}
	params = params.with(desc.InputParam, text)

	out, err := h.Execute(ctx, params, userID)
	if err != nil {
		tracing.RecordError(ctx, err)
		infralog.FromContext(ctx).Errorw("intent handler failed",
			"intent", desc.Intent,
			"module", desc.Module,
			"error", err.Error(),
		)
		return nil, StatusError
	}
	return &out, StatusRouted
}

// chat 优先使用知识库回答，没有结果时调用回复模型。
// 知识库的模型调用与路由共用熔断器，调用失败导致熔断打开时不再回退。
func (r *Router) chat(ctx context.Context, text string, window []llm.Message, userID int64) (*string, Status) {
	if r.knowledge != nil {
		answer, found, err := r.knowledge.Answer(ctx, text, userID)
		switch {
		case err != nil && !r.breaker.IsAvailable():
			infralog.FromContext(ctx).Warnw("knowledge answer failed, circuit is open", "error", err.Error())
			return nil, StatusCircuitOpen
		case err != nil:
			infralog.FromContext(ctx).Warnw("knowledge answer failed, falling back to chat", "error", err.Error())
		case found:
			r.metrics.RecordChat(chatPathRAG, nil)
			return &answer, StatusChat
		}
	}

	reply, err := r.provider.Chat(ctx, window, prompts.Chat())
	r.metrics.RecordChat(chatPathLLM, err)
	if err != nil {
		r.breaker.RecordFailure()
		tracing.RecordError(ctx, err)
		infralog.FromContext(ctx).Errorw("chat reply failed", "error", err.Error())
		return nil, StatusError
	}
	return &reply, StatusChat
}

// audit 异步写审计日志，失败只记录警告。
func (r *Router) audit(ctx context.Context, entry *model.AIRouterLog) {
	if r.logs == nil {
		return
	}
	entry.InputText = textutil.TruncateString(entry.InputText, r.config.AuditInputLength)
	entry.Provider = r.provider.Name()
	entry.Model = r.provider.ModelFor(provider.PurposeClassification)

	write := func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := r.logs.Create(wctx, entry); err != nil {
			logger.Warnw("write router audit log failed",
				"request_id", entry.RequestID, "error", err.Error())
		}
	}
	if r.pool == nil {
		write()
		return
	}
	if !r.pool.Go(write) {
		logger.Warnw("router audit log dropped", "request_id", entry.RequestID)
	}
}

// ClearContext 清除用户的对话上下文。
func (r *Router) ClearContext(userID int64) {
	r.contexts.Clear(userID)
}

// Status 返回路由运行状态。
func (r *Router) Status() RouterStatus {
	return RouterStatus{
		CircuitBreaker:          r.breaker.StatusInfo(),
		Provider:                r.provider.Name(),
		ClassificationModel:     r.provider.ModelFor(provider.PurposeClassification),
		ResponseModel:           r.provider.ModelFor(provider.PurposeResponse),
		ConfidenceThreshold:     r.config.ConfidenceThreshold,
		ChatConfidenceThreshold: r.config.ChatConfidenceThreshold,
		RateLimit: RateLimitStatus{
			Max:           r.config.RateLimit.MaxRequests,
			WindowSeconds: int(r.config.RateLimit.Window / time.Second),
		},
		KnowledgeEnabled: r.knowledge != nil,
		EnabledModules:   sets.List(r.gate.EnabledModules()),
		Intents:          r.registry.Intents(),
		ActiveContexts:   r.contexts.Len(),
	}
}

// HealthCheck 检查模型供应商是否可达。
func (r *Router) HealthCheck(ctx context.Context) error {
	return r.provider.HealthCheck(ctx)
}
