package biz_test

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/airouter/biz"
	"github.com/kart-io/ai-router/internal/airouter/provider"
	"github.com/kart-io/ai-router/internal/airouter/store"
	"github.com/kart-io/ai-router/internal/pkg/conversation"
	"github.com/kart-io/ai-router/internal/pkg/dbtest"
	"github.com/kart-io/ai-router/pkg/id"
	"github.com/kart-io/ai-router/pkg/infra/ratelimit"
	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/llm/resilience"
)

var errUpstream = stderrors.New("upstream unavailable")

// fakeProvider 按顺序返回预设的分类结果。
type fakeProvider struct {
	mu          sync.Mutex
	results     []*provider.ClassificationResult
	classifyErr error
	chatReply   string
	chatErr     error

	windows   [][]llm.Message
	prompts   []string
	chatCalls int
}

func (p *fakeProvider) Classify(_ context.Context, window []llm.Message, systemPrompt string) (*provider.ClassificationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windows = append(p.windows, window)
	p.prompts = append(p.prompts, systemPrompt)
	if p.classifyErr != nil {
		return nil, p.classifyErr
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r, nil
}

func (p *fakeProvider) Chat(context.Context, []llm.Message, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chatCalls++
	return p.chatReply, p.chatErr
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ModelFor(purpose provider.Purpose) string { return "fake-" + string(purpose) }

func (p *fakeProvider) HealthCheck(context.Context) error { return nil }

func (p *fakeProvider) classifyCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.windows)
}

type fakeKnowledge struct {
	answer string
	found  bool
	err    error
	calls  int
}

func (k *fakeKnowledge) Answer(context.Context, string, int64) (string, bool, error) {
	k.calls++
	return k.answer, k.found, k.err
}

type failingLimiter struct{ ratelimit.Limiter }

func (failingLimiter) Check(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errUpstream
}

func (failingLimiter) Record(context.Context, string) error { return errUpstream }

func classified(intent string, confidence float64, params map[string]any) *provider.ClassificationResult {
	if params == nil {
		params = map[string]any{}
	}
	return &provider.ClassificationResult{
		Intent:      intent,
		Confidence:  confidence,
		Parameters:  params,
		ExplainCode: provider.ExplainParsedOK,
		Tier:        provider.TierDirectJSON,
	}
}

type routerFixture struct {
	router   *biz.Router
	provider *fakeProvider
	gate     *biz.StaticGate
	breaker  *resilience.CircuitBreaker
	contexts *conversation.Manager
	logs     store.LogStore
	executed []biz.Params
}

type fixtureOption struct {
	limiter   ratelimit.Limiter
	knowledge biz.Knowledge
	handler   func(ctx context.Context, params biz.Params, userID int64) (string, error)
	modules   []string
}

func newRouterFixture(t *testing.T, fp *fakeProvider, o fixtureOption) *routerFixture {
	t.Helper()
	fx := &routerFixture{provider: fp}

	run := o.handler
	if run == nil {
		run = func(_ context.Context, params biz.Params, _ int64) (string, error) {
			return "Error " + params.String("error_code") + ": replace the card reader.", nil
		}
	}
	registry, err := biz.NewRegistry(biz.HandlerFunc{
		Desc: biz.Descriptor{
			Intent:       "error_lookup",
			Module:       "terminal_errors",
			Description:  "Look up a terminal error code.",
			Parameters:   `{"error_code": "string"}`,
			ExplainCodes: []string{"ERR_NUM_MATCH"},
			InputParam:   "query",
		},
		Fn: func(ctx context.Context, params biz.Params, userID int64) (string, error) {
			fx.executed = append(fx.executed, params)
			return run(ctx, params, userID)
		},
	})
	require.NoError(t, err)

	modules := o.modules
	if modules == nil {
		modules = []string{biz.ModuleAIRouter, "terminal_errors"}
	}
	fx.gate = biz.NewStaticGate(modules...)

	limiter := o.limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.Config{MaxRequests: 3, Window: time.Minute})
	}
	fx.breaker = resilience.NewCircuitBreaker(&resilience.Config{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	fx.contexts = conversation.NewManager(conversation.DefaultConfig())
	fx.logs = store.NewLogStore(dbtest.New(t))

	opts := []biz.Option{biz.WithLogStore(fx.logs)}
	if o.knowledge != nil {
		opts = append(opts, biz.WithKnowledge(o.knowledge))
	}
	fx.router = biz.NewRouter(biz.DefaultConfig(), fp, registry, fx.gate, limiter, fx.breaker, fx.contexts, opts...)
	return fx
}

func TestRouter_RoutesToHandler(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{
		classified("error_lookup", 0.95, map[string]any{"error_code": "E101"}),
	}}
	fx := newRouterFixture(t, fp, fixtureOption{})

	reply, status := fx.router.Route(context.Background(), "what does E101 mean?", 42)

	require.Equal(t, biz.StatusRouted, status)
	require.NotNil(t, reply)
	assert.Equal(t, "Error E101: replace the card reader.", *reply)

	msgs := fx.contexts.GetMessages(42)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "what does E101 mean?", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, *reply, msgs[1].Content)

	// 缺失的 InputParam 用原文补齐
	require.Len(t, fx.executed, 1)
	assert.Equal(t, "what does E101 mean?", fx.executed[0].String("query"))

	assert.Contains(t, fp.prompts[0], "- Intent: error_lookup")

	logs, err := fx.logs.ListByUser(context.Background(), 42, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "routed", logs[0].Status)
	assert.Equal(t, "error_lookup", logs[0].Intent)
	assert.Equal(t, "fake", logs[0].Provider)
	assert.Equal(t, "fake-classification", logs[0].Model)
	assert.True(t, id.Valid(logs[0].RequestID))
}

func TestRouter_UsesRequestIDFromContext(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{classified("unknown", 0.1, nil)}}
	fx := newRouterFixture(t, fp, fixtureOption{})

	requestID := id.NewGenerator().New()
	_, status := fx.router.Route(id.WithRequestID(context.Background(), requestID), "??", 7)
	require.Equal(t, biz.StatusLowConfidence, status)

	logs, err := fx.logs.ListByUser(context.Background(), 7, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, requestID, logs[0].RequestID)
}

func TestRouter_Admission(t *testing.T) {
	t.Run("路由关闭", func(t *testing.T) {
		fp := &fakeProvider{results: []*provider.ClassificationResult{classified("general_chat", 0.9, nil)}}
		fx := newRouterFixture(t, fp, fixtureOption{modules: []string{"terminal_errors"}})

		reply, status := fx.router.Route(context.Background(), "hello", 1)
		assert.Nil(t, reply)
		assert.Equal(t, biz.StatusDisabled, status)
		assert.Zero(t, fp.classifyCalls())
	})

	t.Run("限流", func(t *testing.T) {
		fp := &fakeProvider{results: []*provider.ClassificationResult{classified("unknown", 0.1, nil)}}
		fx := newRouterFixture(t, fp, fixtureOption{})

		for i := 0; i < 3; i++ {
			_, status := fx.router.Route(context.Background(), "???", 1)
			require.Equal(t, biz.StatusLowConfidence, status)
		}
		reply, status := fx.router.Route(context.Background(), "???", 1)
		assert.Equal(t, biz.StatusRateLimited, status)
		require.NotNil(t, reply)
		assert.True(t, strings.HasPrefix(*reply, "Too many requests. Try again in "))
		assert.Equal(t, 3, fp.classifyCalls())

		// 其他用户不受影响
		_, status = fx.router.Route(context.Background(), "???", 2)
		assert.Equal(t, biz.StatusLowConfidence, status)
	})

	t.Run("限流后端故障时放行", func(t *testing.T) {
		fp := &fakeProvider{results: []*provider.ClassificationResult{classified("unknown", 0.1, nil)}}
		fx := newRouterFixture(t, fp, fixtureOption{limiter: failingLimiter{}})

		_, status := fx.router.Route(context.Background(), "???", 1)
		assert.Equal(t, biz.StatusLowConfidence, status)
	})

	t.Run("熔断", func(t *testing.T) {
		fp := &fakeProvider{results: []*provider.ClassificationResult{classified("general_chat", 0.9, nil)}}
		fx := newRouterFixture(t, fp, fixtureOption{})
		fx.breaker.RecordFailure()
		fx.breaker.RecordFailure()

		reply, status := fx.router.Route(context.Background(), "hello", 1)
		assert.Nil(t, reply)
		assert.Equal(t, biz.StatusCircuitOpen, status)
		assert.Zero(t, fp.classifyCalls())
	})
}

func TestRouter_ClassificationFailure(t *testing.T) {
	fp := &fakeProvider{classifyErr: errUpstream}
	fx := newRouterFixture(t, fp, fixtureOption{})

	reply, status := fx.router.Route(context.Background(), "hello", 5)
	assert.Nil(t, reply)
	assert.Equal(t, biz.StatusError, status)
	assert.Equal(t, 1, fx.breaker.StatusInfo().FailureCount)

	logs, err := fx.logs.ListByUser(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "error", logs[0].Status)
	assert.Equal(t, biz.ExplainProviderError, logs[0].ExplainCode)

	_, _ = fx.router.Route(context.Background(), "hello", 5)
	assert.Equal(t, "open", fx.breaker.StatusInfo().State)
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		result     *provider.ClassificationResult
		knowledge  *fakeKnowledge
		chatReply  string
		chatErr    error
		wantStatus biz.Status
		wantReply  string
		wantChat   int
	}{
		{
			name:       "直接回答",
			result:     classified("general_chat", 0.4, map[string]any{"direct_answer": "Restart the terminal."}),
			wantStatus: biz.StatusChat,
			wantReply:  "Restart the terminal.",
		},
		{
			name:       "直接回答置信度过低",
			result:     classified("general_chat", 0.2, map[string]any{"direct_answer": "Restart the terminal."}),
			wantStatus: biz.StatusLowConfidence,
		},
		{
			name:       "闲聊",
			result:     classified("general_chat", 0.7, nil),
			chatReply:  "Hi there.",
			wantStatus: biz.StatusChat,
			wantReply:  "Hi there.",
			wantChat:   1,
		},
		{
			name:       "知识库命中",
			result:     classified("general_chat", 0.7, nil),
			knowledge:  &fakeKnowledge{answer: "See the manual, page 4.", found: true},
			wantStatus: biz.StatusChat,
			wantReply:  "See the manual, page 4.",
		},
		{
			name:       "知识库无结果",
			result:     classified("general_chat", 0.7, nil),
			knowledge:  &fakeKnowledge{},
			chatReply:  "Hi there.",
			wantStatus: biz.StatusChat,
			wantReply:  "Hi there.",
			wantChat:   1,
		},
		{
			name:       "知识库出错回退闲聊",
			result:     classified("general_chat", 0.7, nil),
			knowledge:  &fakeKnowledge{err: errUpstream},
			chatReply:  "Hi there.",
			wantStatus: biz.StatusChat,
			wantReply:  "Hi there.",
			wantChat:   1,
		},
		{
			name:       "闲聊失败",
			result:     classified("general_chat", 0.7, nil),
			chatErr:    errUpstream,
			wantStatus: biz.StatusError,
			wantChat:   1,
		},
		{
			name:       "低置信度",
			result:     classified("unknown", 0.1, nil),
			wantStatus: biz.StatusLowConfidence,
		},
		{
			name:       "中等置信度的未注册意图回退闲聊",
			result:     classified("ticket_status", 0.45, nil),
			chatReply:  "I can not check tickets.",
			wantStatus: biz.StatusChat,
			wantReply:  "I can not check tickets.",
			wantChat:   1,
		},
		{
			name:       "已注册意图置信度不足回退闲聊",
			result:     classified("error_lookup", 0.5, nil),
			chatReply:  "Which error code?",
			wantStatus: biz.StatusChat,
			wantReply:  "Which error code?",
			wantChat:   1,
		},
		{
			name:       "中等置信度的 unknown",
			result:     classified("unknown", 0.45, nil),
			wantStatus: biz.StatusLowConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProvider{
				results:   []*provider.ClassificationResult{tt.result},
				chatReply: tt.chatReply,
				chatErr:   tt.chatErr,
			}
			var k biz.Knowledge
			if tt.knowledge != nil {
				k = tt.knowledge
			}
			fx := newRouterFixture(t, fp, fixtureOption{knowledge: k})

			reply, status := fx.router.Route(context.Background(), "some question", 3)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantReply == "" {
				assert.Nil(t, reply)
			} else {
				require.NotNil(t, reply)
				assert.Equal(t, tt.wantReply, *reply)
			}
			assert.Equal(t, tt.wantChat, fp.chatCalls)
			if tt.chatErr != nil {
				assert.Equal(t, 1, fx.breaker.StatusInfo().FailureCount)
			}
		})
	}
}

func TestRouter_ModuleDisabled(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{
		classified("error_lookup", 0.95, map[string]any{"error_code": "E101"}),
	}}
	fx := newRouterFixture(t, fp, fixtureOption{modules: []string{biz.ModuleAIRouter}})

	reply, status := fx.router.Route(context.Background(), "E101?", 9)
	assert.Equal(t, biz.StatusModuleDisabled, status)
	require.NotNil(t, reply)
	assert.Equal(t, biz.MessageModuleDisabled, *reply)
	assert.Empty(t, fx.executed)
	assert.NotContains(t, fp.prompts[0], "error_lookup")

	fx.gate.SetEnabled("terminal_errors", true)
	_, status = fx.router.Route(context.Background(), "E101?", 9)
	assert.Equal(t, biz.StatusRouted, status)
}

func TestRouter_HandlerFailure(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{
		classified("error_lookup", 0.95, map[string]any{"error_code": "E101"}),
	}}
	fx := newRouterFixture(t, fp, fixtureOption{
		handler: func(context.Context, biz.Params, int64) (string, error) {
			return "", errUpstream
		},
	})

	reply, status := fx.router.Route(context.Background(), "E101?", 9)
	assert.Nil(t, reply)
	assert.Equal(t, biz.StatusError, status)
	// 处理器失败不影响熔断器
	assert.Equal(t, 0, fx.breaker.StatusInfo().FailureCount)

	msgs := fx.contexts.GetMessages(9)
	require.Len(t, msgs, 1)
	assert.Equal(t, "E101?", msgs[0].Content)
}

func TestRouter_TruncatesInputAndContext(t *testing.T) {
	long := strings.Repeat("я", 5000)
	fp := &fakeProvider{
		results:   []*provider.ClassificationResult{classified("general_chat", 0.8, nil)},
		chatReply: strings.Repeat("a", 900),
	}
	fx := newRouterFixture(t, fp, fixtureOption{})

	_, status := fx.router.Route(context.Background(), long, 11)
	require.Equal(t, biz.StatusChat, status)

	window := fp.windows[0]
	assert.Equal(t, 4000, utf8.RuneCountInString(window[len(window)-1].Content))

	msgs := fx.contexts.GetMessages(11)
	require.Len(t, msgs, 2)
	assert.Equal(t, 4000, utf8.RuneCountInString(msgs[0].Content))
	assert.Len(t, msgs[1].Content, 500)

	logs, err := fx.logs.ListByUser(context.Background(), 11, 1)
	require.NoError(t, err)
	assert.Equal(t, 500, utf8.RuneCountInString(logs[0].InputText))
}

func TestRouter_WindowIncludesContext(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{classified("unknown", 0.1, nil)}}
	fx := newRouterFixture(t, fp, fixtureOption{})
	fx.contexts.AddMessage(4, llm.RoleUser, "my terminal shows E101")
	fx.contexts.AddMessage(4, llm.RoleAssistant, "Which model?")

	_, _ = fx.router.Route(context.Background(), "the blue one", 4)

	require.Len(t, fp.windows, 1)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "my terminal shows E101"},
		{Role: llm.RoleAssistant, Content: "Which model?"},
		{Role: llm.RoleUser, Content: "the blue one"},
	}, fp.windows[0])
}

func TestRouter_ClearContextAndStatus(t *testing.T) {
	fp := &fakeProvider{results: []*provider.ClassificationResult{classified("unknown", 0.1, nil)}}
	fx := newRouterFixture(t, fp, fixtureOption{knowledge: &fakeKnowledge{}})

	_, _ = fx.router.Route(context.Background(), "hello", 8)
	require.True(t, fx.contexts.HasContext(8))

	st := fx.router.Status()
	assert.Equal(t, "closed", st.CircuitBreaker.State)
	assert.Equal(t, "fake", st.Provider)
	assert.Equal(t, "fake-classification", st.ClassificationModel)
	assert.Equal(t, "fake-response", st.ResponseModel)
	assert.Equal(t, 0.6, st.ConfidenceThreshold)
	assert.Equal(t, 0.3, st.ChatConfidenceThreshold)
	assert.Equal(t, biz.RateLimitStatus{Max: 10, WindowSeconds: 60}, st.RateLimit)
	assert.True(t, st.KnowledgeEnabled)
	assert.Equal(t, []string{biz.ModuleAIRouter, "terminal_errors"}, st.EnabledModules)
	assert.Equal(t, []string{"error_lookup"}, st.Intents)
	assert.Equal(t, 1, st.ActiveContexts)

	fx.router.ClearContext(8)
	assert.False(t, fx.contexts.HasContext(8))
}

// guardedKnowledge 经共享熔断器调用模型的知识库。
type guardedKnowledge struct {
	responder *resilience.GuardedResponder
	onAnswer  func()
}

func (k *guardedKnowledge) Answer(ctx context.Context, question string, _ int64) (string, bool, error) {
	if k.onAnswer != nil {
		k.onAnswer()
	}
	answer, err := k.responder.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: question}}, "")
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}

func TestRouter_KnowledgeSharesBreaker(t *testing.T) {
	t.Run("知识库调用失败计入熔断器后回退闲聊", func(t *testing.T) {
		fp := &fakeProvider{
			results:   []*provider.ClassificationResult{classified(provider.IntentGeneralChat, 0.8, nil)},
			chatReply: "fallback reply",
		}
		k := &guardedKnowledge{}
		fx := newRouterFixture(t, fp, fixtureOption{knowledge: k})
		k.responder = resilience.NewGuardedResponder(&fakeProvider{chatErr: errUpstream}, fx.breaker)

		reply, status := fx.router.Route(context.Background(), "how do I reset the terminal?", 5)
		require.NotNil(t, reply)
		assert.Equal(t, "fallback reply", *reply)
		assert.Equal(t, biz.StatusChat, status)
		assert.Equal(t, 1, fx.breaker.StatusInfo().FailureCount)
	})

	t.Run("熔断打开后不再回退", func(t *testing.T) {
		fp := &fakeProvider{
			results:   []*provider.ClassificationResult{classified(provider.IntentGeneralChat, 0.8, nil)},
			chatReply: "fallback reply",
		}
		k := &guardedKnowledge{}
		fx := newRouterFixture(t, fp, fixtureOption{knowledge: k})
		upstream := &fakeProvider{chatErr: errUpstream}
		k.responder = resilience.NewGuardedResponder(upstream, fx.breaker)
		// 并发请求的失败在本次调用前已接近阈值
		k.onAnswer = fx.breaker.RecordFailure

		reply, status := fx.router.Route(context.Background(), "how do I reset the terminal?", 5)
		assert.Nil(t, reply)
		assert.Equal(t, biz.StatusCircuitOpen, status)
		assert.Equal(t, "open", fx.breaker.StatusInfo().State)
		assert.Equal(t, 0, fp.chatCalls)
		assert.Equal(t, 1, upstream.chatCalls)
	})
}
