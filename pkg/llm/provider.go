// Package llm 提供统一的 LLM 供应商抽象层。
// 分类与回复可以使用同一供应商下的不同模型，由调用方在请求中指定。
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrEmptyResponse 供应商返回了空的 choices。
var ErrEmptyResponse = errors.New("llm: empty response")

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行一次补全请求，不做任何重试。
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck 检查供应商是否可达。
	HealthCheck(ctx context.Context) error

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRequest 一次补全请求。Model 为空时使用供应商默认模型。
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse 补全结果。
type ChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// WithSystemPrompt 返回以 systemPrompt 开头的新消息列表。
func WithSystemPrompt(systemPrompt string, messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(out, messages...)
}

// ChatProviderFactory Chat 供应商工厂函数类型。
type ChatProviderFactory func(config map[string]any) (ChatProvider, error)

// registry 供应商注册表。
var registry = &providerRegistry{
	providers: make(map[string]ChatProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ChatProviderFactory
}

// RegisterProvider 注册供应商工厂，同名注册会覆盖。
func RegisterProvider(name string, factory ChatProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown chat provider: %s", name)
	}

	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称（按字母排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
