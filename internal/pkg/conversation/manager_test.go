package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/pkg/llm"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(maxMessages int, ttl time.Duration) (*Manager, *clock) {
	c := &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewManager(Config{MaxMessages: maxMessages, TTL: ttl}, WithClock(c.Now)), c
}

func TestManager_BoundedFIFO(t *testing.T) {
	m, _ := newTestManager(6, time.Hour)

	for i := 0; i < 7; i++ {
		m.AddMessage(1, llm.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	msgs := m.GetMessages(1)
	require.Len(t, msgs, 6)
	assert.Equal(t, "msg-1", msgs[0].Content)
	assert.Equal(t, "msg-6", msgs[5].Content)
}

func TestManager_TTLExpiry(t *testing.T) {
	m, c := newTestManager(6, 600*time.Second)

	m.AddMessage(1, llm.RoleUser, "old")
	c.Advance(601 * time.Second)

	assert.Empty(t, m.GetMessages(1))
	assert.False(t, m.HasContext(1))
	assert.Equal(t, 0, m.Len(), "emptied queue removes the user entry")
}

func TestManager_PartialExpiry(t *testing.T) {
	m, c := newTestManager(6, 10*time.Second)

	m.AddMessage(1, llm.RoleUser, "first")
	c.Advance(6 * time.Second)
	m.AddMessage(1, llm.RoleAssistant, "second")
	c.Advance(5 * time.Second)

	msgs := m.GetMessages(1)
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
}

func TestManager_GetMessagesReturnsCopy(t *testing.T) {
	m, _ := newTestManager(6, time.Hour)
	m.AddMessage(1, llm.RoleUser, "hello")

	msgs := m.GetMessages(1)
	msgs[0].Content = "mutated"
	assert.Equal(t, "hello", m.GetMessages(1)[0].Content)
}

func TestManager_ClearAndClearAll(t *testing.T) {
	m, _ := newTestManager(6, time.Hour)
	m.AddMessage(1, llm.RoleUser, "a")
	m.AddMessage(2, llm.RoleUser, "b")
	require.Equal(t, 2, m.Len())

	m.Clear(1)
	assert.False(t, m.HasContext(1))
	assert.True(t, m.HasContext(2))

	m.ClearAll()
	assert.Equal(t, 0, m.Len())

	m.AddMessage(1, llm.RoleUser, "again")
	assert.True(t, m.HasContext(1))
}

func TestManager_LLMMessages(t *testing.T) {
	m, _ := newTestManager(6, time.Hour)
	m.AddMessage(7, llm.RoleUser, "q")
	m.AddMessage(7, llm.RoleAssistant, "a")

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, Content: "a"},
	}, m.LLMMessages(7))
	assert.Empty(t, m.LLMMessages(8))
}

func TestManager_Defaults(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, 6, m.config.MaxMessages)
	assert.Equal(t, 600*time.Second, m.config.TTL)
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(Config{MaxMessages: 6, TTL: time.Hour})

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.AddMessage(id%4, llm.RoleUser, "x")
				_ = m.GetMessages(id % 4)
				if i%25 == 0 {
					m.Clear(id % 4)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	for id := int64(0); id < 4; id++ {
		assert.LessOrEqual(t, len(m.GetMessages(id)), 6)
	}
}
