package signalr

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// NewStream creates a producer/consumer pair backing a server→client
// stream invocation: the registry holds the [StreamProducerHandle] and
// pushes decoded StreamItems to it from the receive pump; the caller of
// Enumerate owns the [StreamConsumer] and pulls items from it.
func NewStream[T any]() (*StreamProducerHandle[T], *StreamConsumer[T]) {
	s := &streamState[T]{
		items: queue.New(),
		wake:  make(chan struct{}, 1),
	}
	return &StreamProducerHandle[T]{s: s}, &StreamConsumer[T]{s: s}
}

type streamState[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	closed bool
	err    error
	wake   chan struct{}
}

func (s *streamState[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// StreamProducerHandle is the producer side of a stream created by
// [NewStream]. It is
// cheap to hold inside the registry's pending-action map and safe to call
// from the receive pump.
type StreamProducerHandle[T any] struct {
	s *streamState[T]
}

// Push appends item to the stream, preserving the total order of pushes,
// and wakes a suspended consumer if any.
func (h *StreamProducerHandle[T]) Push(item T) {
	h.s.mu.Lock()
	if h.s.closed {
		h.s.mu.Unlock()
		return
	}
	h.s.items.Add(item)
	h.s.mu.Unlock()
	h.s.signal()
}

// Close marks the stream complete, optionally with a terminal error (the
// server Completion's error, or ErrConnectionLost), and wakes the consumer.
func (h *StreamProducerHandle[T]) Close(terminal error) {
	h.s.mu.Lock()
	if h.s.closed {
		h.s.mu.Unlock()
		return
	}
	h.s.closed = true
	h.s.err = terminal
	h.s.mu.Unlock()
	h.s.signal()
}

// StreamConsumer is the consumer side of a stream created by [NewStream].
type StreamConsumer[T any] struct {
	s *streamState[T]
}

// Next returns the head item if one is buffered. If the queue is empty and
// the stream is not yet closed, it suspends until a push, a close, or ctx
// ending. Once closed and drained it returns (zero, false, terminalErr).
func (c *StreamConsumer[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		c.s.mu.Lock()
		if c.s.items.Length() > 0 {
			item := c.s.items.Remove().(T)
			c.s.mu.Unlock()
			return item, true, nil
		}
		if c.s.closed {
			err := c.s.err
			c.s.mu.Unlock()
			var zero T
			return zero, false, err
		}
		c.s.mu.Unlock()

		select {
		case <-c.s.wake:
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
}
