package biz_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/ai-router/internal/rag/biz"
	"github.com/kart-io/ai-router/internal/rag/store"
)

func TestScoreChunk(t *testing.T) {
	tests := []struct {
		name   string
		chunk  string
		tokens []string
		want   float64
	}{
		{"无命中", "nothing here", []string{"alpha"}, 0},
		{"空分块", "", []string{"alpha"}, 0},
		{"空问题", "alpha", nil, 0},
		{"半数命中", "Alpha only", []string{"alpha", "beta"}, 0.5 + 0.1},
		{"重复词只计一次", "alpha beta", []string{"alpha", "alpha", "beta"}, 1 + 0.2},
		{"子串命中", "the readers", []string{"reader"}, 1 + 0.1},
		{"密度奖励封顶", "aaa bbb ccc ddd eee", []string{"aaa", "bbb", "ccc", "ddd", "eee"}, 1 + 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, biz.ScoreChunk(tt.chunk, tt.tokens), 1e-9)
		})
	}
}

func TestBuildContextBlocks(t *testing.T) {
	chunks := []biz.ScoredChunk{
		{SourceChunk: store.SourceChunk{Filename: "a.txt", ChunkText: "first"}, Score: 1},
		{SourceChunk: store.SourceChunk{Filename: "", ChunkText: "second"}, Score: 0.5},
		{SourceChunk: store.SourceChunk{Filename: "c.txt", ChunkText: strings.Repeat("z", 100)}, Score: 0.1},
	}

	blocks := biz.BuildContextBlocks(chunks, 1000)
	assert.Equal(t, []string{
		"[Block 1 | a.txt]\nfirst",
		"[Block 2 | document]\nsecond",
		"[Block 3 | c.txt]\n" + strings.Repeat("z", 100),
	}, blocks)

	// 第二块会超出上限，截止于第一块
	limit := len("[Block 1 | a.txt]\nfirst") + 5
	assert.Equal(t, []string{"[Block 1 | a.txt]\nfirst"}, biz.BuildContextBlocks(chunks, limit))
	assert.Empty(t, biz.BuildContextBlocks(chunks, 3))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "4:what is e101?", biz.CacheKey(4, "What is E101?"))
}
