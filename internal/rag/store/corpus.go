package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

const maxReasonLength = 255

type corpus struct {
	db *gorm.DB
}

func (s *corpus) Current(ctx context.Context) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Model(&model.RAGCorpusVersion{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return version, nil
}

func (s *corpus) Bump(ctx context.Context, reason string) (int64, error) {
	row := &model.RAGCorpusVersion{Reason: truncate(reason, maxReasonLength)}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return row.ID, nil
}

type queryLogs struct {
	db *gorm.DB
}

func (s *queryLogs) Create(ctx context.Context, log *model.RAGQueryLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
