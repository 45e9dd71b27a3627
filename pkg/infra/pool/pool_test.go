package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// ants 包初始化时启动的默认池
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
	)
}

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	defer p.Release(time.Second)

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 50, p.Cap())

	_, err = NewPool("bad", &Config{Capacity: 0})
	assert.Error(t, err)
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: time.Second})
	require.NoError(t, err)

	var counter atomic.Int32
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(func() { counter.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int32(100), counter.Load())
	st := p.Stats()
	assert.Equal(t, int64(100), st.SubmittedTasks)
	assert.Equal(t, int64(100), st.CompletedTasks)
	require.NoError(t, p.Release(time.Second))
}

func TestPoolSubmitWithContext(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	defer p.Release(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)

	var ran atomic.Bool
	require.NoError(t, p.SubmitWithContext(context.Background(), func() { ran.Store(true) }))
	p.Wait()
	assert.True(t, ran.Load())
}

func TestPoolGoFallsBackWhenFull(t *testing.T) {
	var fallbackPool atomic.Value
	p, err := NewPool("tiny", &Config{
		Capacity:       1,
		Nonblocking:    true,
		ExpiryDuration: time.Second,
		OnFallback:     func(name string) { fallbackPool.Store(name) },
	})
	require.NoError(t, err)

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))

	var ran atomic.Bool
	assert.True(t, p.Go(func() { ran.Store(true) }))

	close(block)
	p.Wait()
	assert.True(t, ran.Load())
	assert.Equal(t, int64(1), p.Stats().FallbackTasks)
	assert.Equal(t, int64(1), p.Stats().RejectedTasks)
	assert.Equal(t, "tiny", fallbackPool.Load())
	require.NoError(t, p.Release(time.Second))
}

func TestPoolPanicRecovered(t *testing.T) {
	p, err := NewPool("panic", nil)
	require.NoError(t, err)

	require.NoError(t, p.Submit(func() { panic("boom") }))
	p.Wait()

	require.Eventually(t, func() bool { return p.Stats().PanicRecovered == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, p.Release(time.Second))
}

func TestPoolReleaseRejectsNewTasks(t *testing.T) {
	p, err := NewPool("closed", nil)
	require.NoError(t, err)

	var done atomic.Bool
	require.NoError(t, p.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
	}))
	require.NoError(t, p.Release(time.Second))
	assert.True(t, done.Load())

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	assert.False(t, p.Go(func() {}))
	assert.NoError(t, p.Release(time.Second))
}
