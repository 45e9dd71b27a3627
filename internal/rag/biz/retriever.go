package biz

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/pkg/metrics"
	"github.com/kart-io/ai-router/internal/pkg/rag/textutil"
	"github.com/kart-io/ai-router/internal/rag/store"
)

// ScoredChunk 带相关度分数的分块。
type ScoredChunk struct {
	store.SourceChunk
	Score float64
}

// Retriever 在最新的活跃分块上做词法检索。
type Retriever struct {
	store   store.Factory
	config  *Config
	metrics *metrics.Metrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(factory store.Factory, config *Config, m *metrics.Metrics) *Retriever {
	return &Retriever{
		store:   factory,
		config:  config.withDefaults(),
		metrics: m,
	}
}

// Retrieve 返回得分大于 0 的前 TopK 个分块，按分数降序。
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]ScoredChunk, error) {
	tokens := textutil.Unique(textutil.Tokenize(question))
	if len(tokens) == 0 {
		return nil, nil
	}

	start := time.Now()
	candidates, err := r.store.Chunks().RecentActive(ctx, r.config.CandidateLimit)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if s := ScoreChunk(c.ChunkText, tokens); s > 0 {
			scored = append(scored, ScoredChunk{SourceChunk: *c, Score: s})
		}
	}
	// 同分保持候选顺序（新分块在前）
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > r.config.TopK {
		scored = scored[:r.config.TopK]
	}

	r.metrics.RecordRetrieval(time.Since(start))
	logger.Debugw("rag retrieval",
		"tokens", len(tokens),
		"candidates", len(candidates),
		"matched", len(scored),
	)
	return scored, nil
}

// ScoreChunk 计算分块与问题词的相关度：
// 覆盖率（命中的去重问题词 / 去重问题词数）加上 min(命中数/10, 0.3)。
// 命中按子串匹配小写分块文本。
func ScoreChunk(chunkText string, questionTokens []string) float64 {
	low := strings.ToLower(chunkText)
	if low == "" {
		return 0
	}
	unique := textutil.Unique(questionTokens)
	if len(unique) == 0 {
		return 0
	}

	matches := 0
	for _, tok := range unique {
		if strings.Contains(low, tok) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}

	coverage := float64(matches) / float64(len(unique))
	bonus := float64(matches) / 10.0
	if bonus > 0.3 {
		bonus = 0.3
	}
	return coverage + bonus
}
