package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/pkg/llm"
)

// fakeChat 记录请求并返回预设内容。
type fakeChat struct {
	mu       sync.Mutex
	requests []*llm.ChatRequest
	content  string
	err      error
	delay    time.Duration
}

func (f *fakeChat) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Model: req.Model}, nil
}

func (f *fakeChat) HealthCheck(context.Context) error { return f.err }

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) last() *llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestLLMProvider_Classify(t *testing.T) {
	chat := &fakeChat{content: `{"intent":"greeting","confidence":0.9,"parameters":{}}`}
	p := NewLLMProvider(chat, Config{ClassificationModel: "cls-model", ResponseModel: "resp-model"})

	window := []llm.Message{{Role: llm.RoleUser, Content: "hello"}}
	r, err := p.Classify(context.Background(), window, "classify this")
	require.NoError(t, err)
	assert.Equal(t, "greeting", r.Intent)
	assert.GreaterOrEqual(t, r.LatencyMs, int64(0))

	req := chat.last()
	assert.Equal(t, "cls-model", req.Model)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 1024, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "classify this", req.Messages[0].Content)
	assert.Equal(t, window[0], req.Messages[1])
}

func TestLLMProvider_ClassifyUnparsableIsNotAnError(t *testing.T) {
	p := NewLLMProvider(&fakeChat{content: "???"}, Config{})

	r, err := p.Classify(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, r.Intent)
	assert.Equal(t, ExplainNoJSON, r.ExplainCode)
}

func TestLLMProvider_Chat(t *testing.T) {
	chat := &fakeChat{content: "Hi there"}
	p := NewLLMProvider(chat, Config{ClassificationModel: "cls-model", ResponseModel: "resp-model"})

	out, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hey"}}, "be nice")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)

	req := chat.last()
	assert.Equal(t, "resp-model", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
}

func TestLLMProvider_ErrorsPropagate(t *testing.T) {
	boom := errors.New("502 bad gateway")
	chat := &fakeChat{err: boom}
	p := NewLLMProvider(chat, Config{})

	_, err := p.Classify(context.Background(), nil, "")
	assert.ErrorIs(t, err, boom)
	_, err = p.Chat(context.Background(), nil, "")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, chat.requests, 2, "no retries")
}

func TestLLMProvider_Timeout(t *testing.T) {
	p := NewLLMProvider(&fakeChat{content: "late", delay: time.Second}, Config{Timeout: 20 * time.Millisecond})

	_, err := p.Chat(context.Background(), nil, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLLMProvider_ModelFor(t *testing.T) {
	p := NewLLMProvider(&fakeChat{}, Config{
		ClassificationModel: "deepseek-reasoner",
		ResponseModel:       "gpt-5-ultra",
		AllowedModels:       []string{"deepseek-chat", "deepseek-reasoner"},
		DefaultModel:        "deepseek-chat",
	})
	assert.Equal(t, "deepseek-reasoner", p.ModelFor(PurposeClassification))
	assert.Equal(t, "deepseek-chat", p.ModelFor(PurposeResponse))
	assert.Equal(t, "fake", p.Name())
}

func TestNew_DeepSeekRestrictsModels(t *testing.T) {
	p, err := New("deepseek", map[string]any{"api_key": "k"}, Config{
		ClassificationModel: "unknown-model",
		ResponseModel:       "deepseek-reasoner",
	})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, "deepseek-chat", p.ModelFor(PurposeClassification))
	assert.Equal(t, "deepseek-reasoner", p.ModelFor(PurposeResponse))

	_, err = New("no-such-provider", nil, Config{})
	assert.Error(t, err)
}
