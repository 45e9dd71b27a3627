// Package rag 提供知识库配置项。
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ai-router/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 知识库配置。
type Options struct {
	// Enabled 关闭时通用对话不查询知识库，知识库接口不注册。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	ChunkSize       int `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap    int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	MaxChunksPerDoc int `json:"max-chunks-per-doc" mapstructure:"max-chunks-per-doc"`
	MaxFileSizeMB   int `json:"max-file-size-mb" mapstructure:"max-file-size-mb"`
	TopK            int `json:"top-k" mapstructure:"top-k"`
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`
	// CandidateLimit 参与打分的最新活跃分块数。
	CandidateLimit int           `json:"candidate-limit" mapstructure:"candidate-limit"`
	CacheTTL       time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
	// HTMLHeaderSplitter HTML 文档按 h1-h6 标题拆分。
	HTMLHeaderSplitter bool `json:"html-header-splitter" mapstructure:"html-header-splitter"`

	// Admins 可以管理知识库的用户 ID。
	Admins []int64 `json:"admins" mapstructure:"admins"`

	// WatchDir 非空时监听该目录并自动导入新文件。
	WatchDir string `json:"watch-dir" mapstructure:"watch-dir"`
	// WatchDebounce 文件最后一次变化后等待的时间。
	WatchDebounce time.Duration `json:"watch-debounce" mapstructure:"watch-debounce"`
	// WatchScanExisting 启动时导入目录中已有的文件。
	WatchScanExisting bool `json:"watch-scan-existing" mapstructure:"watch-scan-existing"`
	// WatchUploadedBy 监听导入记录的上传人。
	WatchUploadedBy int64 `json:"watch-uploaded-by" mapstructure:"watch-uploaded-by"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Enabled:            true,
		ChunkSize:          1000,
		ChunkOverlap:       150,
		MaxChunksPerDoc:    500,
		MaxFileSizeMB:      20,
		TopK:               8,
		MaxContextChars:    14000,
		CandidateLimit:     3000,
		CacheTTL:           300 * time.Second,
		HTMLHeaderSplitter: true,
		WatchDebounce:      time.Second,
	}
}

// AddFlags 注册知识库相关 flag。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the knowledge base.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Chunk size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks.")
	fs.IntVar(&o.MaxChunksPerDoc, p+"max-chunks-per-doc", o.MaxChunksPerDoc, "Maximum chunks kept per document.")
	fs.IntVar(&o.MaxFileSizeMB, p+"max-file-size-mb", o.MaxFileSizeMB, "Maximum upload size in MB.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks sent to the model.")
	fs.IntVar(&o.MaxContextChars, p+"max-context-chars", o.MaxContextChars, "Maximum characters of context sent to the model.")
	fs.IntVar(&o.CandidateLimit, p+"candidate-limit", o.CandidateLimit, "Most recent active chunks considered for scoring.")
	fs.DurationVar(&o.CacheTTL, p+"cache-ttl", o.CacheTTL, "Answer cache TTL.")
	fs.BoolVar(&o.HTMLHeaderSplitter, p+"html-header-splitter", o.HTMLHeaderSplitter, "Split HTML documents by headers.")
	fs.Int64SliceVar(&o.Admins, p+"admins", o.Admins, "User IDs allowed to manage the knowledge base.")
	fs.StringVar(&o.WatchDir, p+"watch-dir", o.WatchDir, "Directory watched for new documents, empty to disable.")
	fs.DurationVar(&o.WatchDebounce, p+"watch-debounce", o.WatchDebounce, "Quiet period before a changed file is ingested.")
	fs.BoolVar(&o.WatchScanExisting, p+"watch-scan-existing", o.WatchScanExisting, "Ingest files already present in the watch directory at startup.")
	fs.Int64Var(&o.WatchUploadedBy, p+"watch-uploaded-by", o.WatchUploadedBy, "User ID recorded as uploader of watched files.")
}

// Validate 校验配置，关闭时不做检查。
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MaxFileSizeMB <= 0 || o.MaxChunksPerDoc <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-file-size-mb and rag.max-chunks-per-doc must be positive"))
	}
	if o.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-context-chars must be positive"))
	}
	if o.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("rag.cache-ttl must be positive"))
	}
	return errs
}

// Complete 补齐默认值。
func (o *Options) Complete() error {
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 3000
	}
	if o.WatchDebounce <= 0 {
		o.WatchDebounce = time.Second
	}
	return nil
}
