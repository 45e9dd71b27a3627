package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time // 零值表示永不过期
}

func (it item[V]) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// MemoryCache 线程安全的内存缓存。
// 过期条目在读取时视为不存在，由 Sweep 统一清理。
type MemoryCache[K comparable, V any] struct {
	mu sync.RWMutex

	data map[K]item[V]

	// extractors 索引名 -> 索引值提取函数
	extractors map[string]func(V) any

	// indices 索引名 -> 索引值 -> key 集合
	indices map[string]map[any]map[K]struct{}

	now func() time.Time
}

var _ Store[string, int] = (*MemoryCache[string, int])(nil)

// NewMemoryCache 创建内存缓存。
func NewMemoryCache[K comparable, V any]() *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		data:       make(map[K]item[V]),
		extractors: make(map[string]func(V) any),
		indices:    make(map[string]map[any]map[K]struct{}),
		now:        time.Now,
	}
}

// WithClock 替换时间源，用于测试。
func (c *MemoryCache[K, V]) WithClock(now func() time.Time) *MemoryCache[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Set 写入或覆盖条目。
func (c *MemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.data[key]; ok {
		c.removeFromIndexes(key, old.value)
	}

	it := item[V]{value: value}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.data[key] = it
	c.addToIndexes(key, value)
}

// Get 读取未过期的条目。
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.data[key]
	if !ok || it.expired(c.now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Del 删除条目。
func (c *MemoryCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

// Len 返回条目数量，包含尚未清理的过期条目。
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear 清空数据，保留已注册的索引。
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[K]item[V])
	for name := range c.extractors {
		c.indices[name] = make(map[any]map[K]struct{})
	}
}

// Sweep 删除所有已过期条目。
func (c *MemoryCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, it := range c.data {
		if it.expired(now) {
			c.deleteLocked(k)
			removed++
		}
	}
	return removed
}

// AddIndex 注册二级索引，并为已有数据建立索引。
func (c *MemoryCache[K, V]) AddIndex(name string, extractor func(V) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.extractors[name] = extractor
	c.indices[name] = make(map[any]map[K]struct{})
	for k, it := range c.data {
		c.addIndexEntry(name, extractor(it.value), k)
	}
}

// Find 按索引值查询未过期的条目。
func (c *MemoryCache[K, V]) Find(indexName string, indexValue any) ([]V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.extractors[indexName]; !ok {
		return nil, ErrIndexNotFound
	}

	keys := c.indices[indexName][indexValue]
	now := c.now()
	results := make([]V, 0, len(keys))
	for k := range keys {
		if it, ok := c.data[k]; ok && !it.expired(now) {
			results = append(results, it.value)
		}
	}
	return results, nil
}

// DelWhere 删除索引值满足 match 的条目。
func (c *MemoryCache[K, V]) DelWhere(indexName string, match func(indexValue any) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, ok := c.indices[indexName]
	if !ok {
		return 0, ErrIndexNotFound
	}

	var victims []K
	for v, keys := range index {
		if !match(v) {
			continue
		}
		for k := range keys {
			victims = append(victims, k)
		}
	}
	for _, k := range victims {
		c.deleteLocked(k)
	}
	return len(victims), nil
}

// 以下辅助方法要求调用方已持有写锁

func (c *MemoryCache[K, V]) deleteLocked(key K) {
	if old, ok := c.data[key]; ok {
		c.removeFromIndexes(key, old.value)
		delete(c.data, key)
	}
}

func (c *MemoryCache[K, V]) addToIndexes(key K, value V) {
	for name, extractor := range c.extractors {
		c.addIndexEntry(name, extractor(value), key)
	}
}

func (c *MemoryCache[K, V]) removeFromIndexes(key K, value V) {
	for name, extractor := range c.extractors {
		index, ok := c.indices[name]
		if !ok {
			continue
		}
		v := extractor(value)
		if keys, ok := index[v]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(index, v)
			}
		}
	}
}

func (c *MemoryCache[K, V]) addIndexEntry(name string, indexValue any, key K) {
	index, ok := c.indices[name]
	if !ok {
		index = make(map[any]map[K]struct{})
		c.indices[name] = index
	}
	keys, ok := index[indexValue]
	if !ok {
		keys = make(map[K]struct{})
		index[indexValue] = keys
	}
	keys[key] = struct{}{}
}
