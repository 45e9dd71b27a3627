package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

type documents struct {
	db *gorm.DB
}

// Create inserts a document and fills its ID.
func (s *documents) Create(ctx context.Context, doc *model.RAGDocument) error {
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *documents) Get(ctx context.Context, id int64) (*model.RAGDocument, error) {
	var doc model.RAGDocument
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRAGDocumentNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &doc, nil
}

// FindActiveByHash 查找内容哈希相同的活跃文档，不存在时返回 nil, nil。
func (s *documents) FindActiveByHash(ctx context.Context, hash string) (*model.RAGDocument, error) {
	var docs []*model.RAGDocument
	err := s.db.WithContext(ctx).
		Where("content_hash = ? AND status = ?", hash, model.DocumentStatusActive).
		Order("id").
		Limit(1).
		Find(&docs).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// List lists documents newest first.
func (s *documents) List(ctx context.Context, status string, limit int) ([]*model.RAGDocument, error) {
	var docs []*model.RAGDocument
	db := s.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Find(&docs).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return docs, nil
}

// UpdateStatus changes the status of a document.
func (s *documents) UpdateStatus(ctx context.Context, id int64, status string, updatedBy int64) error {
	result := s.db.WithContext(ctx).Model(&model.RAGDocument{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_by": updatedBy})
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrRAGDocumentNotFound
	}
	return nil
}

// Delete removes a document row.
func (s *documents) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RAGDocument{})
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrRAGDocumentNotFound
	}
	return nil
}

// CountByStatus 按状态统计文档数。
func (s *documents) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.RAGDocument{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	counts := map[string]int64{
		model.DocumentStatusActive:   0,
		model.DocumentStatusArchived: 0,
		model.DocumentStatusDeleted:  0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
