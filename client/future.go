package client

import (
	"context"
	"sync"
)

// Future is the eventual outcome of one call. It settles exactly once.
type Future[R any] struct {
	once  sync.Once
	done  chan struct{}
	value R
	err   error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) settle(v R, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done is closed once the call has settled.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call settles or ctx ends. Giving up on a future does
// not stop the request; its result is simply dropped.
func (f *Future[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
