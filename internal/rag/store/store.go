package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// Factory 聚合 RAG 各存储。
type Factory interface {
	Documents() DocumentStore
	Chunks() ChunkStore
	Corpus() CorpusStore
	QueryLogs() QueryLogStore
	// Transaction 在单个事务中执行 fn，fn 返回错误时回滚。
	Transaction(ctx context.Context, fn func(tx Factory) error) error
}

// DocumentStore 文档存储。
type DocumentStore interface {
	Create(ctx context.Context, doc *model.RAGDocument) error
	Get(ctx context.Context, id int64) (*model.RAGDocument, error)
	FindActiveByHash(ctx context.Context, hash string) (*model.RAGDocument, error)
	// List 按 ID 倒序返回文档，status 为空表示不过滤。
	List(ctx context.Context, status string, limit int) ([]*model.RAGDocument, error)
	UpdateStatus(ctx context.Context, id int64, status string, updatedBy int64) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ChunkStore 分块存储。
type ChunkStore interface {
	CreateBatch(ctx context.Context, chunks []*model.RAGChunk) error
	DeleteByDocument(ctx context.Context, documentID int64) error
	// RecentActive 返回活跃文档中最新的 limit 个分块及其文件名。
	RecentActive(ctx context.Context, limit int) ([]*SourceChunk, error)
	Count(ctx context.Context) (int64, error)
}

// CorpusStore 语料版本存储。
type CorpusStore interface {
	// Current 返回当前版本号，没有记录时为 0。
	Current(ctx context.Context) (int64, error)
	// Bump 追加一个版本，原因超过 255 字符时截断。
	Bump(ctx context.Context, reason string) (int64, error)
}

// QueryLogStore 问答日志存储。
type QueryLogStore interface {
	Create(ctx context.Context, log *model.RAGQueryLog) error
}

// SourceChunk 带来源文件名的分块。
type SourceChunk struct {
	ChunkID   int64
	Filename  string
	ChunkText string
}

type datastore struct {
	db *gorm.DB
}

var _ Factory = (*datastore)(nil)

// NewFactory 基于 gorm 连接创建存储工厂。
func NewFactory(db *gorm.DB) Factory {
	return &datastore{db: db}
}

// Migrate 自动迁移 RAG 相关表。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.RAGDocument{},
		&model.RAGChunk{},
		&model.RAGCorpusVersion{},
		&model.RAGQueryLog{},
	); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (ds *datastore) Documents() DocumentStore {
	return &documents{db: ds.db}
}

func (ds *datastore) Chunks() ChunkStore {
	return &chunks{db: ds.db}
}

func (ds *datastore) Corpus() CorpusStore {
	return &corpus{db: ds.db}
}

func (ds *datastore) QueryLogs() QueryLogStore {
	return &queryLogs{db: ds.db}
}

func (ds *datastore) Transaction(ctx context.Context, fn func(tx Factory) error) error {
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&datastore{db: tx})
	})
}
