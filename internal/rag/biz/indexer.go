package biz

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/internal/pkg/metrics"
	"github.com/kart-io/ai-router/internal/pkg/rag/extract"
	"github.com/kart-io/ai-router/internal/pkg/rag/textutil"
	"github.com/kart-io/ai-router/internal/rag/store"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// 文档来源类型。
const (
	SourceTypeAPI     = "api"
	SourceTypeWatcher = "watcher"
	SourceTypeAdmin   = "admin"
)

// IngestRequest 文档入库请求。
type IngestRequest struct {
	Filename   string
	Payload    []byte
	UploadedBy int64
	SourceType string
	SourceURL  string
}

// IngestResult 文档入库结果。
type IngestResult struct {
	DocumentID  int64 `json:"document_id"`
	ChunkCount  int   `json:"chunk_count"`
	IsDuplicate bool  `json:"is_duplicate"`
}

// Indexer 负责文档入库。
type Indexer struct {
	store    store.Factory
	splitter *textutil.Splitter
	config   *Config
	metrics  *metrics.Metrics
}

// NewIndexer 创建索引器实例。
func NewIndexer(factory store.Factory, config *Config, m *metrics.Metrics) *Indexer {
	config = config.withDefaults()
	return &Indexer{
		store:    factory,
		splitter: textutil.NewSplitter(config.ChunkSize, config.ChunkOverlap),
		config:   config,
		metrics:  m,
	}
}

// Validate 在解析之前检查文件名、格式和大小。
func (i *Indexer) Validate(req *IngestRequest) error {
	if strings.TrimSpace(req.Filename) == "" {
		return errors.ErrRAGMissingFilename
	}
	if !extract.IsSupported(req.Filename) {
		return errors.ErrRAGUnsupportedFormat.WithMessagef("unsupported file format, allowed: %s",
			strings.Join(extract.SupportedExtensions(), " "))
	}
	if len(req.Payload) > i.config.maxFileBytes() {
		return errors.ErrRAGFileTooLarge.WithMessagef("file exceeds %d MB", i.config.MaxFileSizeMB)
	}
	return nil
}

// Index 校验、去重、分块并在单个事务中写入文档和分块。
func (i *Indexer) Index(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if err := i.Validate(req); err != nil {
		i.metrics.RecordIngest("rejected", 0)
		return nil, err
	}

	hash := textutil.SHA256Hex(req.Payload)
	existing, err := i.store.Documents().FindActiveByHash(ctx, hash)
	if err != nil {
		i.metrics.RecordIngest("error", 0)
		return nil, err
	}
	if existing != nil {
		logger.Infow("rag document already indexed",
			"filename", req.Filename,
			"document_id", existing.ID,
		)
		i.metrics.RecordIngest("duplicate", 0)
		return &IngestResult{DocumentID: existing.ID, IsDuplicate: true}, nil
	}

	chunks, err := i.Chunk(req.Filename, req.Payload)
	if err != nil {
		i.metrics.RecordIngest("rejected", 0)
		return nil, err
	}
	if len(chunks) == 0 {
		i.metrics.RecordIngest("rejected", 0)
		return nil, errors.ErrRAGEmptyDocument
	}
	if len(chunks) > i.config.MaxChunksPerDoc {
		chunks = chunks[:i.config.MaxChunksPerDoc]
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = SourceTypeAPI
	}
	doc := &model.RAGDocument{
		Filename:    req.Filename,
		SourceType:  sourceType,
		SourceURL:   req.SourceURL,
		UploadedBy:  req.UploadedBy,
		Status:      model.DocumentStatusActive,
		ContentHash: hash,
		ChunkCount:  len(chunks),
	}

	err = i.store.Transaction(ctx, func(tx store.Factory) error {
		if err := tx.Documents().Create(ctx, doc); err != nil {
			return err
		}
		rows := make([]*model.RAGChunk, len(chunks))
		for idx, text := range chunks {
			rows[idx] = &model.RAGChunk{
				DocumentID: doc.ID,
				ChunkIndex: idx,
				ChunkText:  text,
			}
		}
		if err := tx.Chunks().CreateBatch(ctx, rows); err != nil {
			return err
		}
		_, err := tx.Corpus().Bump(ctx, "upload:"+req.Filename)
		return err
	})
	if err != nil {
		i.metrics.RecordIngest("error", 0)
		return nil, errors.ErrRAGIndexFailed.WithCause(err)
	}

	logger.Infow("rag document indexed",
		"filename", req.Filename,
		"document_id", doc.ID,
		"chunks", len(chunks),
		"uploaded_by", req.UploadedBy,
		"source_type", sourceType,
	)
	i.metrics.RecordIngest("indexed", len(chunks))

	return &IngestResult{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}

// Chunk 提取文本并切分。HTML 优先按标题切分，失败或无结果时退回纯文本切分。
func (i *Indexer) Chunk(filename string, payload []byte) ([]string, error) {
	if format, _ := extract.Detect(filename); format == extract.FormatHTML && i.config.HTMLHeaderSplitter {
		if chunks := i.chunkHTMLSections(payload); len(chunks) > 0 {
			return chunks, nil
		}
		logger.Debugw("html header splitter produced no sections, using plain text", "filename", filename)
	}

	text, err := extract.Text(filename, payload)
	if err != nil {
		if stderrors.Is(err, extract.ErrUnsupportedFormat) {
			return nil, errors.ErrRAGUnsupportedFormat
		}
		return nil, errors.ErrRAGExtractFailed.WithCause(err)
	}
	return i.splitter.Split(text), nil
}

func (i *Indexer) chunkHTMLSections(payload []byte) []string {
	sections, err := extract.HTMLSections(extract.DecodeText(payload))
	if err != nil {
		logger.Warnw("html header splitter failed", "error", err.Error())
		return nil
	}
	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, i.splitter.Split(section.String())...)
	}
	return chunks
}
