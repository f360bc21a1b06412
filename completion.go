package signalr

import (
	"context"
	"sync"
)

// NewOneShot creates a one-shot future pair: a [OneShotHandle] the producer
// completes exactly once, from any goroutine, and a [OneShotFuture] the
// consumer awaits exactly once.
//
// The handle is cheap to store in the registry's pending-action map; the
// future is owned by whichever caller is awaiting the invocation response.
func NewOneShot[T any]() (*OneShotHandle[T], *OneShotFuture[T]) {
	ch := make(chan oneShotResult[T], 1)
	h := &OneShotHandle[T]{ch: ch}
	f := &OneShotFuture[T]{ch: ch}
	return h, f
}

type oneShotResult[T any] struct {
	value T
	err   error
}

// OneShotHandle is the producer side of a future created by [NewOneShot].
type OneShotHandle[T any] struct {
	ch   chan oneShotResult[T]
	once sync.Once
}

// Complete resolves the future with value. A second call (Complete or Fail)
// is silently ignored, matching the "complete exactly once" invariant.
func (h *OneShotHandle[T]) Complete(value T) {
	h.once.Do(func() {
		h.ch <- oneShotResult[T]{value: value}
	})
}

// Fail resolves the future with err. A second call (Complete or Fail) is
// silently ignored.
func (h *OneShotHandle[T]) Fail(err error) {
	h.once.Do(func() {
		h.ch <- oneShotResult[T]{err: err}
	})
}

// OneShotFuture is the consumer side of a future created by [NewOneShot].
type OneShotFuture[T any] struct {
	ch chan oneShotResult[T]
}

// Wait blocks until the future is completed or ctx is done. If the handle
// is dropped without completing, Wait blocks until ctx ends (callers are
// expected to bound every invoke with a context).
func (f *OneShotFuture[T]) Wait(ctx context.Context) (T, error) {
	select {
	case r := <-f.ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
