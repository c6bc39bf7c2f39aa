package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFunc(context.Context, []any) (any, error) { return nil, nil }

func TestPoolPriorityOrdering(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	// Block the single worker so all four submissions queue up before any
	// run, then release it and record the order tasks actually execute in.
	release := make(chan struct{})
	started := make(chan struct{})
	blocker := func(ctx context.Context, args []any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}

	_, err := p.Submit(blocker, nil, Normal, 0, time.Minute)
	require.NoError(t, err)
	<-started

	var mu sync.Mutex
	var order []string
	record := func(name string) Func {
		return func(ctx context.Context, args []any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	_, err = p.Submit(record("low"), nil, Low, 0, time.Minute)
	require.NoError(t, err)
	_, err = p.Submit(record("critical"), nil, Critical, 0, time.Minute)
	require.NoError(t, err)
	_, err = p.Submit(record("normal"), nil, Normal, 0, time.Minute)
	require.NoError(t, err)
	_, err = p.Submit(record("high"), nil, High, 0, time.Minute)
	require.NoError(t, err)

	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"critical", "high", "normal", "low"}, order)
}

func TestPoolRetryBound(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	var attempts atomic.Int64
	fn := func(ctx context.Context, args []any) (any, error) {
		n := attempts.Add(1)
		if n < 3 {
			return nil, assert.AnError
		}
		return "ok", nil
	}

	h, err := p.Submit(fn, nil, Normal, 3, time.Minute)
	require.NoError(t, err)

	result, err := h.Wait(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestPoolRetryExhausted(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	var attempts atomic.Int64
	fn := func(ctx context.Context, args []any) (any, error) {
		attempts.Add(1)
		return nil, assert.AnError
	}

	h, err := p.Submit(fn, nil, Normal, 2, time.Minute)
	require.NoError(t, err)

	_, err = h.Wait(2 * time.Second)
	assert.Error(t, err)
	assert.Equal(t, Failed, h.State())
	assert.Equal(t, int64(3), attempts.Load()) // 1 initial + 2 retries
}

func TestHandleCancelQueued(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	blocker := func(ctx context.Context, args []any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}
	_, err := p.Submit(blocker, nil, Normal, 0, time.Minute)
	require.NoError(t, err)
	<-started

	h, err := p.Submit(noopFunc, nil, Normal, 0, 0)
	require.NoError(t, err)

	assert.True(t, h.Cancel())
	assert.Equal(t, Cancelled, h.State())

	close(release)
}

func TestPoolQueueFull(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, QueueCapacity: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	// Occupy the only worker so nothing drains the queue during the test.
	release := make(chan struct{})
	started := make(chan struct{})
	blocker := func(ctx context.Context, args []any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}
	_, err := p.Submit(blocker, nil, Normal, 0, time.Minute)
	require.NoError(t, err)
	<-started

	_, err = p.Submit(noopFunc, nil, Normal, 0, 0)
	require.NoError(t, err)

	_, err = p.Submit(noopFunc, nil, Normal, 0, 0)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestPoolTaskTimeout(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	fn := func(ctx context.Context, args []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	h, err := p.Submit(fn, nil, Normal, 0, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = h.Wait(2 * time.Second)
	assert.Error(t, err)
	assert.Equal(t, Failed, h.State())
}

// A task enqueued with timeout=0 fails immediately with a timeout error
// when it starts running, without ever invoking fn.
func TestPoolZeroTimeoutFailsImmediately(t *testing.T) {
	cfg := WithDefaults(Config{MinWorkers: 1, MaxWorkers: 1, AutoScale: false})
	p := New(cfg)
	defer p.Shutdown()

	var invoked atomic.Bool
	fn := func(ctx context.Context, args []any) (any, error) {
		invoked.Store(true)
		return "ran", nil
	}

	h, err := p.Submit(fn, nil, Normal, 0, 0)
	require.NoError(t, err)

	_, err = h.Wait(2 * time.Second)
	assert.Error(t, err)
	assert.Equal(t, Failed, h.State())
	assert.False(t, invoked.Load())
}
