package biz

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/airouter/prompts"
	"github.com/kart-io/ai-router/pkg/llm"
)

// Responder 生成自由文本回答的模型接口。
type Responder interface {
	Chat(ctx context.Context, messages []llm.Message, systemPrompt string) (string, error)
}

// Generator 负责答案生成。
type Generator struct {
	responder Responder
	config    *Config
}

// NewGenerator 创建生成器实例。
func NewGenerator(responder Responder, config *Config) *Generator {
	return &Generator{
		responder: responder,
		config:    config.withDefaults(),
	}
}

// BuildContextBlocks 将分块格式化为 "[Block i | filename]\n<text>"，
// 在累计字符数将超过 maxChars 之前停止。
func BuildContextBlocks(chunks []ScoredChunk, maxChars int) []string {
	blocks := make([]string, 0, len(chunks))
	total := 0
	for idx, c := range chunks {
		source := c.Filename
		if source == "" {
			source = "document"
		}
		block := fmt.Sprintf("[Block %d | %s]\n%s", idx+1, source, c.ChunkText)
		n := utf8.RuneCountInString(block)
		if total+n > maxChars {
			break
		}
		blocks = append(blocks, block)
		total += n
	}
	return blocks
}

// Generate 以问题为唯一用户消息、以上下文块构建系统提示词调用模型。
func (g *Generator) Generate(ctx context.Context, question string, blocks []string) (string, error) {
	if ctx.Err() != nil {
		return "", fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}
	answer, err := g.responder.Chat(ctx, messages, prompts.RAG(blocks))
	if err != nil {
		return "", err
	}

	logger.Debugw("rag answer generated",
		"blocks", len(blocks),
		"answer_length", utf8.RuneCountInString(answer),
	)
	return answer, nil
}
