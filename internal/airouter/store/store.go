// Package store 持久化 AI 路由审计日志。
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// LogStore 路由日志存储。
type LogStore interface {
	Create(ctx context.Context, log *model.AIRouterLog) error
	// ListByUser 按时间倒序返回某用户最近的路由日志。
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.AIRouterLog, error)
}

type logs struct {
	db *gorm.DB
}

// NewLogStore creates a gorm backed LogStore.
func NewLogStore(db *gorm.DB) LogStore {
	return &logs{db: db}
}

// Migrate creates the router log table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.AIRouterLog{}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *logs) Create(ctx context.Context, log *model.AIRouterLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *logs) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.AIRouterLog, error) {
	var items []*model.AIRouterLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return items, nil
}
