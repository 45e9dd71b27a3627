package resilience

import (
	"context"

	"github.com/kart-io/ai-router/pkg/llm"
)

// Responder 自由文本回答接口。
type Responder interface {
	Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error)
}

// GuardedResponder 经熔断器调用 Responder，与路由共享同一个熔断器。
type GuardedResponder struct {
	next Responder
	cb   *CircuitBreaker
}

// NewGuardedResponder 创建带熔断的 Responder。
func NewGuardedResponder(next Responder, cb *CircuitBreaker) *GuardedResponder {
	return &GuardedResponder{next: next, cb: cb}
}

// Chat 熔断打开时返回 ErrCircuitOpen，不请求供应商。
func (g *GuardedResponder) Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error) {
	var answer string
	err := g.cb.Execute(func() error {
		var err error
		answer, err = g.next.Chat(ctx, messages, systemPrompt)
		return err
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// CircuitBreaker 返回熔断器实例（用于监控）。
func (g *GuardedResponder) CircuitBreaker() *CircuitBreaker {
	return g.cb
}
