package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/pkg/rag/textutil"
)

func TestSHA256Hex(t *testing.T) {
	h1 := textutil.SHA256Hex([]byte("test"))
	assert.Equal(t, h1, textutil.SHA256Hex([]byte("test")))
	assert.NotEqual(t, h1, textutil.SHA256Hex([]byte("different")))
	assert.Len(t, h1, 64)
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", h1)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "短于限制", input: "hello", maxLen: 10, expected: "hello"},
		{name: "等于限制", input: "hello", maxLen: 5, expected: "hello"},
		{name: "超过限制", input: "hello world", maxLen: 5, expected: "hello"},
		{name: "中文字符", input: "你好世界", maxLen: 2, expected: "你好"},
		{name: "西里尔字符", input: "привет", maxLen: 3, expected: "при"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.TruncateString(tt.input, tt.maxLen))
		})
	}
}

func TestTokenize(t *testing.T) {
	got := textutil.Tokenize("Как настроить Терминал? Ошибка 99, code 301 at POS")
	assert.Equal(t, []string{"как", "настроить", "терминал", "ошибка", "code", "301", "pos"}, got)

	assert.Empty(t, textutil.Tokenize("a b c 12"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, textutil.Unique([]string{"a", "b", "a", "c", "b"}))
}

func TestSplitter_ShortText(t *testing.T) {
	s := textutil.NewSplitter(100, 10)
	assert.Equal(t, []string{"hello world"}, s.Split("  hello world \n"))
	assert.Nil(t, s.Split("   \n\n "))
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	s := textutil.NewSplitter(20, 0)
	chunks := s.Split("aaaa bbbb\n\ncccc dddd\n\neeee")
	assert.Equal(t, []string{"aaaa bbbb\n\ncccc dddd", "eeee"}, chunks)
}

func TestSplitter_OverlapCarriesTail(t *testing.T) {
	s := textutil.NewSplitter(11, 5)
	chunks := s.Split("w01 w02 w03 w04 w05 w06")
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "w01 w02 w03", chunks[0])
	assert.Equal(t, "w03 w04 w05", chunks[1])
}

func TestSplitter_ChunksNeverExceedSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("слово word ")
		if i%7 == 0 {
			b.WriteString("sentence end. ")
		}
		if i%31 == 0 {
			b.WriteString("\n\n")
		}
	}
	b.WriteString(strings.Repeat("x", 250))

	s := textutil.NewSplitter(100, 15)
	chunks := s.Split(b.String())
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
}

func TestHardSplit(t *testing.T) {
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, textutil.HardSplit("abcdefghij", 4, 1))
	assert.Equal(t, []string{"abcde", "fghij"}, textutil.HardSplit("abcdefghij", 5, 0))
	// overlap 不小于窗口时每次至少前进一个字符
	assert.Equal(t, []string{"abc", "bcd", "cde", "def"}, textutil.HardSplit("abcdef", 3, 5))
	assert.Nil(t, textutil.HardSplit("abc", 0, 0))
}

func TestContainsString(t *testing.T) {
	slice := []string{"apple", "banana", "cherry"}

	assert.True(t, textutil.ContainsString(slice, "banana"))
	assert.False(t, textutil.ContainsString(slice, "grape"))
	assert.False(t, textutil.ContainsString(nil, "apple"))
}
