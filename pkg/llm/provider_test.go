package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "mock response", Model: req.Model}, nil
}

func (m *mockProvider) HealthCheck(_ context.Context) error {
	return nil
}

func TestRegisterAndNewChatProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (ChatProvider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewChatProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())

	resp, err := provider.Chat(context.Background(), &ChatRequest{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", resp.Model)
}

func TestNewChatProviderUnknown(t *testing.T) {
	_, err := NewChatProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestListProviders(t *testing.T) {
	RegisterProvider("zz-list", func(map[string]any) (ChatProvider, error) { return &mockProvider{}, nil })
	RegisterProvider("aa-list", func(map[string]any) (ChatProvider, error) { return &mockProvider{}, nil })

	names := ListProviders()
	assert.Contains(t, names, "zz-list")
	assert.Contains(t, names, "aa-list")
	assert.IsIncreasing(t, names)
}

func TestWithSystemPrompt(t *testing.T) {
	msgs := []Message{{Role: RoleUser, Content: "hi"}}

	out := WithSystemPrompt("be brief", msgs)
	require.Len(t, out, 2)
	assert.Equal(t, RoleSystem, out[0].Role)
	assert.Equal(t, "be brief", out[0].Content)
	assert.Equal(t, msgs[0], out[1])

	assert.Equal(t, msgs, WithSystemPrompt("", msgs))
}
