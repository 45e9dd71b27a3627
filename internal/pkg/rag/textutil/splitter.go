package textutil

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 按优先级排列的自然断点，空串表示按固定窗口切分。
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter 递归字符切分器。
//
// 优先在靠前的分隔符处断开，片段仍超长时换下一个分隔符；
// 分隔符用尽时退化为带重叠的固定窗口。长度均以 Unicode 字符计。
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewSplitter 创建切分器，非法的 overlap 会被修正到 [0, chunkSize)。
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, Separators: DefaultSeparators}
}

// Split 切分文本，返回去除首尾空白后的非空分块。
func (s *Splitter) Split(text string) []string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}
	raw := s.split(cleaned, s.Separators)
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return HardSplit(text, s.ChunkSize, s.Overlap)
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, sep)...)
	}
	return chunks
}

// merge 把小片段拼接成不超过 ChunkSize 的块，相邻块保留不超过 Overlap 的尾部片段。
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		docs    []string
		current []string
		total   int
	)
	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		l := runeLen(p)
		if total+l+joinCost() > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > s.Overlap || (total+l+joinCost() > s.ChunkSize && total > 0)) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// HardSplit 按固定窗口切分，下一窗口起点为 max(end-overlap, start+1)。
func HardSplit(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []string
	for start := 0; start < n; {
		end := min(start+chunkSize, n)
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end >= n {
			break
		}
		start = max(end-overlap, start+1)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
