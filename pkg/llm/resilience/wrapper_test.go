package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/pkg/llm"
)

type countingResponder struct {
	calls int
	err   error
}

func (r *countingResponder) Chat(context.Context, []llm.Message, string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return "ok", nil
}

func TestGuardedResponder(t *testing.T) {
	t.Run("失败计入熔断器，打开后不再请求供应商", func(t *testing.T) {
		cb, _ := newTestBreaker(2, time.Minute)
		next := &countingResponder{err: errors.New("bad gateway")}
		g := NewGuardedResponder(next, cb)

		for i := 0; i < 2; i++ {
			_, err := g.Chat(context.Background(), nil, "")
			require.Error(t, err)
		}
		assert.Equal(t, StateOpen, cb.State())

		for i := 0; i < 3; i++ {
			_, err := g.Chat(context.Background(), nil, "")
			assert.ErrorIs(t, err, ErrCircuitOpen)
		}
		assert.Equal(t, 2, next.calls)
		assert.Equal(t, 2, cb.StatusInfo().FailureCount)
	})

	t.Run("成功清零失败计数", func(t *testing.T) {
		cb, _ := newTestBreaker(3, time.Minute)
		cb.RecordFailure()
		g := NewGuardedResponder(&countingResponder{}, cb)

		answer, err := g.Chat(context.Background(), nil, "")
		require.NoError(t, err)
		assert.Equal(t, "ok", answer)
		assert.Equal(t, 0, cb.StatusInfo().FailureCount)
	})

	t.Run("半开状态试探成功后关闭", func(t *testing.T) {
		cb, clock := newTestBreaker(1, time.Second)
		next := &countingResponder{}
		g := NewGuardedResponder(next, cb)

		cb.RecordFailure()
		_, err := g.Chat(context.Background(), nil, "")
		assert.ErrorIs(t, err, ErrCircuitOpen)

		clock.Advance(time.Second)
		_, err = g.Chat(context.Background(), nil, "")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 1, next.calls)
	})
}
