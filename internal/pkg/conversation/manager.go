// Package conversation 维护每个用户最近的对话消息，供意图分类和闲聊回复作为上下文。
//
// 每个用户一个有界 FIFO，超过 MaxMessages 丢弃最旧的消息；超过 TTL 的消息在每次
// 读写前从队头裁剪，队列清空后用户条目随之删除。
package conversation

import (
	"sync"
	"time"

	"github.com/kart-io/ai-router/pkg/llm"
)

// Message 一条上下文消息。
type Message struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Config 上下文配置。
type Config struct {
	MaxMessages int           `json:"max-messages" mapstructure:"max-messages"`
	TTL         time.Duration `json:"ttl" mapstructure:"ttl"`
}

// DefaultConfig 返回默认配置：6 条消息，10 分钟过期。
func DefaultConfig() Config {
	return Config{
		MaxMessages: 6,
		TTL:         600 * time.Second,
	}
}

type userContext struct {
	mu       sync.Mutex
	messages []Message
	// detached 条目已从用户表移除，写入方需要重新获取
	detached bool
}

// Manager 按用户保存对话上下文。
// 顶层读写锁只保护用户表，每个用户的队列由自己的互斥锁保护。
// 同时需要两把锁时，先取顶层锁。
type Manager struct {
	config Config
	now    func() time.Time

	mu    sync.RWMutex
	users map[int64]*userContext
}

// Option 配置 Manager。
type Option func(*Manager)

// WithClock 替换时间源。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager 创建上下文管理器。
func NewManager(config Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if config.MaxMessages <= 0 {
		config.MaxMessages = def.MaxMessages
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}

	m := &Manager{
		config: config,
		now:    time.Now,
		users:  make(map[int64]*userContext),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddMessage 追加一条消息。
func (m *Manager) AddMessage(userID int64, role llm.Role, content string) {
	now := m.now()

	for {
		uc := m.getOrCreate(userID)
		uc.mu.Lock()
		if uc.detached {
			uc.mu.Unlock()
			continue
		}
		uc.messages = m.prune(uc.messages, now)
		uc.messages = append(uc.messages, Message{Role: role, Content: content, CreatedAt: now})
		if over := len(uc.messages) - m.config.MaxMessages; over > 0 {
			uc.messages = append(uc.messages[:0], uc.messages[over:]...)
		}
		uc.mu.Unlock()
		return
	}
}

// GetMessages 返回未过期消息的副本，按时间先后排列。
func (m *Manager) GetMessages(userID int64) []Message {
	uc := m.get(userID)
	if uc == nil {
		return nil
	}

	uc.mu.Lock()
	if uc.detached {
		uc.mu.Unlock()
		return nil
	}
	uc.messages = m.prune(uc.messages, m.now())
	out := make([]Message, len(uc.messages))
	copy(out, uc.messages)
	empty := len(uc.messages) == 0
	uc.mu.Unlock()

	if empty {
		m.removeIfEmpty(userID, uc)
		return nil
	}
	return out
}

// LLMMessages 返回可直接作为模型输入的消息列表。
func (m *Manager) LLMMessages(userID int64) []llm.Message {
	msgs := m.GetMessages(userID)
	out := make([]llm.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = llm.Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

// HasContext 用户是否存在未过期的消息。
func (m *Manager) HasContext(userID int64) bool {
	return len(m.GetMessages(userID)) > 0
}

// Clear 删除用户上下文。
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uc, ok := m.users[userID]; ok {
		m.detachLocked(userID, uc)
	}
}

// ClearAll 删除所有上下文。
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, uc := range m.users {
		m.detachLocked(id, uc)
	}
}

// Len 返回当前跟踪的用户数。
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *Manager) get(userID int64) *userContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID]
}

func (m *Manager) getOrCreate(userID int64) *userContext {
	if uc := m.get(userID); uc != nil {
		return uc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	uc, ok := m.users[userID]
	if !ok {
		uc = &userContext{}
		m.users[userID] = uc
	}
	return uc
}

// detachLocked 要求持有顶层写锁。
func (m *Manager) detachLocked(userID int64, uc *userContext) {
	uc.mu.Lock()
	uc.detached = true
	uc.mu.Unlock()
	delete(m.users, userID)
}

func (m *Manager) removeIfEmpty(userID int64, uc *userContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.users[userID] != uc {
		return
	}
	uc.mu.Lock()
	empty := len(uc.messages) == 0
	if empty {
		uc.detached = true
	}
	uc.mu.Unlock()
	if empty {
		delete(m.users, userID)
	}
}

// prune 从队头删除早于 now-TTL 的消息。
func (m *Manager) prune(messages []Message, now time.Time) []Message {
	cutoff := now.Add(-m.config.TTL)
	i := 0
	for i < len(messages) && messages[i].CreatedAt.Before(cutoff) {
		i++
	}
	if i == 0 {
		return messages
	}
	return append(messages[:0], messages[i:]...)
}
