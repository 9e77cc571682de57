package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed once the
	// subscription ends.
	Receive() <-chan Message[T]

	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to every active subscriber.
// Delivery never blocks the sender: a full subscriber misses the message.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber that lives until ctx is done,
	// Close is called on it, or the broadcaster is closed.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast delivers msg to all subscribers with room in their buffer.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close closes every subscriber. Later broadcasts return ErrClosed.
	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan Message[T]
	done   chan struct{}
	closed bool
	detach func()
}

func newSubscriber[T any](buffer int) *subscriber[T] {
	return &subscriber[T]{
		ch:   make(chan Message[T], buffer),
		done: make(chan struct{}),
	}
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	if s.detach != nil {
		s.detach()
	}
	s.shut()
	return nil
}

func (s *subscriber[T]) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
		close(s.done)
	}
}

// offer reports whether msg was queued.
func (s *subscriber[T]) offer(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
