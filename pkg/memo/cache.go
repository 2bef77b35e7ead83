// Package memo provides a concurrent, compute-at-most-once cache.
//
// A [Cache] maps keys to values produced by a build function. For any key the
// build function runs at most once while it succeeds or fails for a reason other
// than cancellation; every concurrent caller asking for the same key waits on
// that single build and receives the identical result.
//
// Build outcomes are classified:
//
//   - success: memoized forever.
//   - cancellation (the error matches context.Canceled or
//     context.DeadlineExceeded): the entry is evicted and callers still
//     waiting retry, one of them becoming the new builder.
//   - any other error: memoized and returned to every caller, now and later.
//     A broken build does not fix itself by being retried.
//   - panic: memoized as a [*PanicError] and re-panicked in every caller.
package memo

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// BuildFunc produces the value for key.
type BuildFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// PanicError carries a panic raised by a build function.
type PanicError struct {
	Key   any
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("memo: build for %v panicked: %v\n\n%s", p.Key, p.Value, p.Stack)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

type cell[V any] struct {
	done     chan struct{} // closed once the build has finished
	val      V
	err      error
	panicked *PanicError
}

// Cache is safe for concurrent use. Entries are never evicted except after a
// cancelled build.
type Cache[K comparable, V any] struct {
	build BuildFunc[K, V]
	log   zerolog.Logger

	mu    sync.RWMutex
	cells map[K]*cell[V]
}

type Option func(*options)

type options struct {
	log zerolog.Logger
}

// WithLogger logs build events at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func New[K comparable, V any](build BuildFunc[K, V], opts ...Option) *Cache[K, V] {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	return &Cache[K, V]{
		build: build,
		log:   o.log,
		cells: make(map[K]*cell[V]),
	}
}

// Get returns the value for key, building it if no build has happened yet.
//
// A caller waiting on someone else's build gives up when its own ctx is done;
// the build itself carries on for the remaining callers.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
	for {
		cl, owner := c.cellFor(key)
		if owner {
			c.run(ctx, key, cl)
		} else {
			select {
			case <-cl.done:
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}
		}

		if cl.panicked != nil {
			panic(cl.panicked)
		}
		if !owner && isCancellation(cl.err) && ctx.Err() == nil {
			// The builder was cancelled, not us. Its cell is already evicted.
			continue
		}
		return cl.val, cl.err
	}
}

// Len returns the number of entries, in flight or completed.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cells)
}

// cellFor returns the cell for key, creating it if absent. owner is true when the
// caller created the cell and must run the build.
func (c *Cache[K, V]) cellFor(key K) (cl *cell[V], owner bool) {
	c.mu.RLock()
	cl, ok := c.cells[key]
	c.mu.RUnlock()
	if ok {
		return cl, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check in case another goroutine created it
	if cl, ok := c.cells[key]; ok {
		return cl, false
	}

	cl = &cell[V]{done: make(chan struct{})}
	c.cells[key] = cl
	return cl, true
}

func (c *Cache[K, V]) run(ctx context.Context, key K, cl *cell[V]) {
	defer func() {
		if r := recover(); r != nil {
			cl.panicked = &PanicError{Key: key, Value: r, Stack: debug.Stack()}
			c.log.Error().Str("key", fmt.Sprint(key)).Interface("panic", r).Msg("memo: build panicked")
		}
		if isCancellation(cl.err) {
			c.evict(key, cl)
		}
		close(cl.done)
	}()

	c.log.Debug().Str("key", fmt.Sprint(key)).Msg("memo: building")
	cl.val, cl.err = c.build(ctx, key)
	if cl.err != nil {
		c.log.Debug().Str("key", fmt.Sprint(key)).Err(cl.err).Msg("memo: build failed")
	}
}

func (c *Cache[K, V]) evict(key K, cl *cell[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cells[key] == cl {
		delete(c.cells, key)
	}
	c.log.Debug().Str("key", fmt.Sprint(key)).Msg("memo: build cancelled, entry evicted")
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
