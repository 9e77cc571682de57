package queue

import "context"

// Queue is the contract every backing store implements. All operations are
// scoped to the store the instance is connected to and, where a name is
// taken, to one logical queue in it.
type Queue interface {
	// Push persists msg. It returns false without side effects when msg is
	// expired or, for a unique msg, when its content hash is already recorded.
	Push(ctx context.Context, msg *Message) (bool, error)

	// Pop promotes due delayed messages and removes the next ready message.
	// It returns nil, nil when nothing is ready.
	Pop(ctx context.Context, queue string) (*Message, error)

	// Fail counts a failure and re-pushes msg when msg.ShouldRetry allows it.
	// It reports whether msg was re-enqueued.
	Fail(ctx context.Context, msg *Message) (bool, error)

	// Complete counts a success.
	Complete(ctx context.Context, msg *Message) error

	// Clear empties the ready, delayed and unique structures. Counters stay.
	Clear(ctx context.Context, queue string) error

	// Reset zeroes the completed, failed and total counters. Structures stay.
	Reset(ctx context.Context, queue string) error

	// Stats reads the queue's sizes and counters.
	Stats(ctx context.Context, queue string) (Stats, error)

	// Queues lists the logical queues that have any data in the store.
	Queues(ctx context.Context) ([]string, error)

	// Close releases the store connection owned by the queue.
	Close() error
}

// Opener creates a queue with its own store connection.
type Opener func(ctx context.Context) (Queue, error)

// Shared returns an Opener that hands out q itself and ignores Close, for
// workers that must share one process-local queue such as MemoryQueue.
func Shared(q Queue) Opener {
	return func(context.Context) (Queue, error) {
		if q == nil {
			return nil, ErrQueueNil
		}
		return sharedQueue{q}, nil
	}
}

type sharedQueue struct {
	Queue
}

func (sharedQueue) Close() error { return nil }
