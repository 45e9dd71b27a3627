package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/internal/pkg/metrics"
	"github.com/kart-io/ai-router/internal/pkg/rag/textutil"
	"github.com/kart-io/ai-router/internal/rag/store"
	"github.com/kart-io/ai-router/pkg/infra/pool"
	"github.com/kart-io/ai-router/pkg/infra/tracing"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// 列表参数范围。
const (
	maxListLimit    = 200
	maxLoggedQuery  = 1000
	queryLogTimeout = 5 * time.Second
)

// Service 定义知识库服务接口。
type Service interface {
	// Ingest 上传并索引文档。
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
	// List 按 ID 倒序列出文档，status 为空或 "all" 表示全部。
	List(ctx context.Context, status string, limit int) ([]*model.RAGDocument, error)
	// Get 获取文档，不存在时返回 ErrRAGDocumentNotFound。
	Get(ctx context.Context, id int64) (*model.RAGDocument, error)
	// SetStatus 修改文档状态，文档不存在时返回 false。
	SetStatus(ctx context.Context, id int64, status string, updatedBy int64) (bool, error)
	// Delete 软删除（状态置为 deleted）或物理删除文档。
	Delete(ctx context.Context, id int64, updatedBy int64, hard bool) (bool, error)
	// Answer 基于知识库回答问题，没有相关内容时 ok 为 false。
	Answer(ctx context.Context, question string, userID int64) (answer string, ok bool, err error)
	// Stats 获取知识库统计信息。
	Stats(ctx context.Context) (*model.RAGStats, error)
}

// RAGService 组合 Indexer、Retriever 和 Generator 提供完整的知识库服务。
type RAGService struct {
	store     store.Factory
	indexer   *Indexer
	retriever *Retriever
	generator *Generator
	cache     AnswerCache
	config    *Config
	metrics   *metrics.Metrics
	// pool 异步写问答日志，为 nil 时同步写入
	pool *pool.Pool
}

var _ Service = (*RAGService)(nil)

// Option 服务可选项。
type Option func(*RAGService)

// WithMetrics 设置指标收集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RAGService) { s.metrics = m }
}

// WithPool 设置后台任务池。
func WithPool(p *pool.Pool) Option {
	return func(s *RAGService) { s.pool = p }
}

// NewRAGService 创建知识库服务实例。cache 为 nil 时使用内存缓存。
func NewRAGService(factory store.Factory, responder Responder, cache AnswerCache, config *Config, opts ...Option) *RAGService {
	config = config.withDefaults()
	if cache == nil {
		cache = NewMemoryAnswerCache(nil)
	}
	s := &RAGService{
		store:  factory,
		cache:  cache,
		config: config,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.indexer = NewIndexer(factory, config, s.metrics)
	s.retriever = NewRetriever(factory, config, s.metrics)
	s.generator = NewGenerator(responder, config)
	return s
}

// Ingest 上传并索引文档，成功后清理过期缓存。
func (s *RAGService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	ctx, span := tracing.StartSpan(ctx, "rag.Ingest", tracing.String("rag.filename", req.Filename))
	defer span.End()

	result, err := s.indexer.Index(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx,
		tracing.Int64(tracing.AttrDocumentID, result.DocumentID),
		tracing.Int(tracing.AttrChunks, result.ChunkCount),
	)
	if !result.IsDuplicate {
		s.sweepCache(ctx)
	}
	return result, nil
}

func (s *RAGService) List(ctx context.Context, status string, limit int) ([]*model.RAGDocument, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "all" {
		status = ""
	}
	if status != "" && !model.IsValidDocumentStatus(status) {
		return nil, errors.ErrRAGInvalidStatus.WithMessagef("invalid document status %q", status)
	}
	return s.store.Documents().List(ctx, status, clampLimit(limit))
}

func (s *RAGService) Get(ctx context.Context, id int64) (*model.RAGDocument, error) {
	return s.store.Documents().Get(ctx, id)
}

func (s *RAGService) SetStatus(ctx context.Context, id int64, status string, updatedBy int64) (bool, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.IsValidDocumentStatus(status) {
		return false, errors.ErrRAGInvalidStatus.WithMessagef("invalid document status %q", status)
	}

	var changed bool
	err := s.store.Transaction(ctx, func(tx store.Factory) error {
		doc, err := tx.Documents().Get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status == status {
			return nil
		}
		if err := tx.Documents().UpdateStatus(ctx, id, status, updatedBy); err != nil {
			return err
		}
		changed = true
		// 只有进出 active 才影响检索结果
		if doc.Status == model.DocumentStatusActive || status == model.DocumentStatusActive {
			_, err = tx.Corpus().Bump(ctx, "status:"+formatID(id)+":"+doc.Status+"->"+status)
		}
		return err
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrRAGDocumentNotFound) {
			return false, nil
		}
		return false, err
	}

	if changed {
		logger.Infow("rag document status changed",
			"document_id", id,
			"status", status,
			"updated_by", updatedBy,
		)
		s.sweepCache(ctx)
	}
	return true, nil
}

func (s *RAGService) Delete(ctx context.Context, id int64, updatedBy int64, hard bool) (bool, error) {
	if !hard {
		return s.SetStatus(ctx, id, model.DocumentStatusDeleted, updatedBy)
	}

	err := s.store.Transaction(ctx, func(tx store.Factory) error {
		doc, err := tx.Documents().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Chunks().DeleteByDocument(ctx, id); err != nil {
			return err
		}
		if err := tx.Documents().Delete(ctx, id); err != nil {
			return err
		}
		if doc.Status == model.DocumentStatusActive {
			_, err = tx.Corpus().Bump(ctx, "purge:"+formatID(id))
		}
		return err
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrRAGDocumentNotFound) {
			return false, nil
		}
		return false, err
	}

	logger.Infow("rag document purged", "document_id", id, "updated_by", updatedBy)
	s.sweepCache(ctx)
	return true, nil
}

// Answer 缓存命中直接返回；否则检索、生成并缓存。没有相关分块时不调用模型。
func (s *RAGService) Answer(ctx context.Context, question string, userID int64) (string, bool, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) < s.config.MinQuestionLength {
		return "", false, nil
	}

	ctx, span := tracing.StartSpan(ctx, "rag.Answer", tracing.Int64(tracing.AttrUserID, userID))
	defer span.End()

	version, err := s.store.Corpus().Current(ctx)
	if err != nil {
		s.metrics.RecordRAGQuery("error")
		tracing.RecordError(ctx, err)
		return "", false, err
	}

	if answer, ok := s.cache.Get(ctx, version, question); ok {
		tracing.AddSpanAttributes(ctx, tracing.Bool(tracing.AttrCacheHit, true))
		s.metrics.RecordRAGQuery("cache_hit")
		s.logQuery(ctx, userID, question, true, 0)
		return answer, true, nil
	}

	chunks, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		s.metrics.RecordRAGQuery("error")
		tracing.RecordError(ctx, err)
		return "", false, err
	}
	if len(chunks) == 0 {
		s.metrics.RecordRAGQuery("no_answer")
		return "", false, nil
	}

	blocks := BuildContextBlocks(chunks, s.config.MaxContextChars)
	tracing.AddSpanAttributes(ctx,
		tracing.Bool(tracing.AttrCacheHit, false),
		tracing.Int(tracing.AttrChunks, len(blocks)),
	)

	answer, err := s.generator.Generate(ctx, question, blocks)
	if err != nil {
		s.metrics.RecordRAGQuery("error")
		tracing.RecordError(ctx, err)
		return "", false, err
	}

	s.cache.Set(ctx, version, question, answer, s.config.CacheTTL)
	s.cache.Sweep(ctx, version)
	s.metrics.RecordRAGQuery("answered")
	s.logQuery(ctx, userID, question, false, len(blocks))

	return answer, true, nil
}

func (s *RAGService) Stats(ctx context.Context) (*model.RAGStats, error) {
	counts, err := s.store.Documents().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.Chunks().Count(ctx)
	if err != nil {
		return nil, err
	}
	version, err := s.store.Corpus().Current(ctx)
	if err != nil {
		return nil, err
	}
	return &model.RAGStats{
		Documents:     counts,
		Chunks:        chunks,
		CorpusVersion: version,
		CacheEntries:  s.cache.Len(ctx),
	}, nil
}

// sweepCache 在语料变化后清理缓存，失败只记录日志。
func (s *RAGService) sweepCache(ctx context.Context) {
	version, err := s.store.Corpus().Current(ctx)
	if err != nil {
		logger.Warnw("failed to read corpus version for cache sweep", "error", err.Error())
		return
	}
	if n := s.cache.Sweep(ctx, version); n > 0 {
		logger.Debugw("answer cache swept", "removed", n, "version", version)
	}
}

// logQuery 尽力写入问答日志，失败只记录告警。
func (s *RAGService) logQuery(ctx context.Context, userID int64, question string, cacheHit bool, chunks int) {
	entry := &model.RAGQueryLog{
		UserID:      userID,
		QueryText:   textutil.TruncateString(question, maxLoggedQuery),
		CacheHit:    cacheHit,
		ChunksCount: chunks,
	}
	write := func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryLogTimeout)
		defer cancel()
		if err := s.store.QueryLogs().Create(wctx, entry); err != nil {
			logger.Warnw("failed to write rag query log", "error", err.Error(), "user_id", userID)
		}
	}

	if s.pool == nil {
		write()
		return
	}
	if !s.pool.Go(write) {
		logger.Warnw("rag query log dropped, pool closed", "user_id", userID)
	}
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
