package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codecStub struct{ name string }

func TestCache_concurrent_single_build(t *testing.T) {
	const callers = 16

	var builds atomic.Int32
	cache := New(func(ctx context.Context, key string) (*codecStub, error) {
		builds.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &codecStub{name: key}, nil
	})

	start := make(chan struct{})
	results := make([]*codecStub, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := cache.Get(context.Background(), "invoice")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load(), "build must run exactly once")
	require.NotNil(t, results[0])
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCache_distinct_keys(t *testing.T) {
	var builds atomic.Int32
	cache := New(func(ctx context.Context, key int) (int, error) {
		builds.Add(1)
		return key * 2, nil
	})

	for i := range 5 {
		v, err := cache.Get(context.Background(), i)
		require.NoError(t, err)
		assert.Equal(t, i*2, v)
	}
	_, err := cache.Get(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, int32(5), builds.Load())
	assert.Equal(t, 5, cache.Len())
}

func TestCache_error_is_memoized(t *testing.T) {
	errBroken := errors.New("broken metadata")

	var builds atomic.Int32
	cache := New(func(ctx context.Context, key string) (int, error) {
		builds.Add(1)
		return 0, errBroken
	})

	for range 3 {
		_, err := cache.Get(context.Background(), "k")
		assert.ErrorIs(t, err, errBroken)
	}
	assert.Equal(t, int32(1), builds.Load(), "non-cancellation failures are not retried")
}

func TestCache_cancelled_build_is_evicted(t *testing.T) {
	var builds atomic.Int32
	cache := New(func(ctx context.Context, key string) (string, error) {
		if builds.Add(1) == 1 {
			return "", context.Canceled
		}
		return "built", nil
	})

	_, err := cache.Get(context.Background(), "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cache.Len())

	v, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "built", v)
	assert.Equal(t, int32(2), builds.Load())
}

func TestCache_waiter_retries_after_builder_cancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var builds atomic.Int32
	cache := New(func(ctx context.Context, key string) (string, error) {
		if builds.Add(1) == 1 {
			close(started)
			<-release
			return "", context.DeadlineExceeded
		}
		return "second", nil
	})

	ownerErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), "k")
		ownerErr <- err
	}()
	<-started

	waiter := make(chan string, 1)
	go func() {
		v, err := cache.Get(context.Background(), "k")
		assert.NoError(t, err)
		waiter <- v
	}()

	close(release)
	assert.ErrorIs(t, <-ownerErr, context.DeadlineExceeded)
	assert.Equal(t, "second", <-waiter)
	assert.Equal(t, int32(2), builds.Load())
}

func TestCache_waiter_context_done(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	cache := New(func(ctx context.Context, key string) (string, error) {
		close(started)
		<-release
		return "slow", nil
	})

	done := make(chan string, 1)
	go func() {
		v, _ := cache.Get(context.Background(), "k")
		done <- v
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Equal(t, "slow", <-done, "the build continues for the remaining callers")

	v, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "slow", v)
}

func TestCache_panic_is_not_swallowed(t *testing.T) {
	var builds atomic.Int32
	cache := New(func(ctx context.Context, key string) (int, error) {
		builds.Add(1)
		panic("reflection defect")
	})

	for range 2 {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				perr, ok := r.(*PanicError)
				require.True(t, ok, "expected *PanicError, got %T", r)
				assert.Equal(t, "reflection defect", perr.Value)
				assert.Equal(t, "k", perr.Key)
				assert.NotEmpty(t, perr.Stack)
			}()
			_, _ = cache.Get(context.Background(), "k")
		}()
	}
	assert.Equal(t, int32(1), builds.Load())
}
