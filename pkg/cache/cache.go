// Package cache 提供带过期时间和二级索引的进程内缓存。
package cache

import (
	"errors"
	"time"
)

// ErrIndexNotFound 查询未注册的索引。
var ErrIndexNotFound = errors.New("index not found")

// Cache 通用缓存接口。ttl <= 0 表示永不过期。
type Cache[K comparable, V any] interface {
	Set(key K, value V, ttl time.Duration)
	Get(key K) (V, bool)
	Del(key K)
	Len() int
	Clear()
	// Sweep 删除已过期条目，返回删除数量。
	Sweep() int
}

// Store 在 Cache 基础上支持按二级索引查询和批量删除。
type Store[K comparable, V any] interface {
	Cache[K, V]

	AddIndex(name string, extractor func(V) any)
	Find(indexName string, indexValue any) ([]V, error)
	// DelWhere 删除索引值满足 match 的所有条目。
	DelWhere(indexName string, match func(indexValue any) bool) (int, error)
}
