package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// 批量插入每批行数，避免超出 SQLite 参数上限。
const chunkBatchSize = 100

type chunks struct {
	db *gorm.DB
}

// CreateBatch inserts chunks in batches.
func (s *chunks) CreateBatch(ctx context.Context, items []*model.RAGChunk) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(items, chunkBatchSize).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// DeleteByDocument removes every chunk of a document.
func (s *chunks) DeleteByDocument(ctx context.Context, documentID int64) error {
	if err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.RAGChunk{}).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// RecentActive 按分块 ID 倒序读取活跃文档的分块。
func (s *chunks) RecentActive(ctx context.Context, limit int) ([]*SourceChunk, error) {
	var rows []*SourceChunk
	err := s.db.WithContext(ctx).
		Table("rag_chunks AS c").
		Select("c.id AS chunk_id, d.filename AS filename, c.chunk_text AS chunk_text").
		Joins("JOIN rag_documents AS d ON d.id = c.document_id").
		Where("d.status = ?", model.DocumentStatusActive).
		Order("c.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}

// Count returns the total number of chunks.
func (s *chunks) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.RAGChunk{}).Count(&n).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return n, nil
}
