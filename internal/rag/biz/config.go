package biz

import "time"

// Config 知识库业务配置。
type Config struct {
	// ChunkSize 分块大小（字符）。
	ChunkSize int
	// ChunkOverlap 相邻分块重叠大小。
	ChunkOverlap int
	// MaxChunksPerDoc 单个文档最多保留的分块数。
	MaxChunksPerDoc int
	// MaxFileSizeMB 上传文件大小上限。
	MaxFileSizeMB int
	// TopK 检索返回的分块数。
	TopK int
	// MaxContextChars 发送给模型的上下文字符上限。
	MaxContextChars int
	// CandidateLimit 参与打分的最新活跃分块数。
	CandidateLimit int
	// CacheTTL 回答缓存有效期。
	CacheTTL time.Duration
	// HTMLHeaderSplitter 是否按标题拆分 HTML。
	HTMLHeaderSplitter bool
	// MinQuestionLength 问题最短长度（去除首尾空白后）。
	MinQuestionLength int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:          1000,
		ChunkOverlap:       150,
		MaxChunksPerDoc:    500,
		MaxFileSizeMB:      20,
		TopK:               8,
		MaxContextChars:    14000,
		CandidateLimit:     3000,
		CacheTTL:           300 * time.Second,
		HTMLHeaderSplitter: true,
		MinQuestionLength:  3,
	}
}

// withDefaults 用默认值补齐非法字段。
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.ChunkSize <= 0 {
		out.ChunkSize = d.ChunkSize
	}
	if out.ChunkOverlap < 0 {
		out.ChunkOverlap = d.ChunkOverlap
	}
	if out.MaxChunksPerDoc <= 0 {
		out.MaxChunksPerDoc = d.MaxChunksPerDoc
	}
	if out.MaxFileSizeMB <= 0 {
		out.MaxFileSizeMB = d.MaxFileSizeMB
	}
	if out.TopK <= 0 {
		out.TopK = d.TopK
	}
	if out.MaxContextChars <= 0 {
		out.MaxContextChars = d.MaxContextChars
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = d.CandidateLimit
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = d.CacheTTL
	}
	if out.MinQuestionLength <= 0 {
		out.MinQuestionLength = d.MinQuestionLength
	}
	return &out
}

// maxFileBytes 返回上传大小上限（字节）。
func (c *Config) maxFileBytes() int {
	return c.MaxFileSizeMB * 1024 * 1024
}
