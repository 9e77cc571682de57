package queue

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryQueue implements Queue in process memory for tests and local
// development. Messages are stored encoded, exactly as a remote store would
// hold them, so attempt counters and decoding behave the same way.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]*memoryBucket
	now    func() time.Time
	closed bool
}

type memoryBucket struct {
	ready     [][]byte // oldest first
	delayed   []delayedEntry
	unique    map[string]struct{}
	completed int64
	failed    int64
	total     int64
}

type delayedEntry struct {
	readyAt time.Time
	data    []byte
}

// MemoryOption configures a MemoryQueue
type MemoryOption func(*MemoryQueue)

// WithMemoryClock overrides the time source used for expiry and promotion
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue(opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		queues: make(map[string]*memoryBucket),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// MemoryDriver builds a MemoryQueue for a Manager config entry
func MemoryDriver(_ context.Context, _ string, _ QueueConfig) (Queue, error) {
	return NewMemoryQueue(), nil
}

// Push implements Queue
func (q *MemoryQueue) Push(ctx context.Context, msg *Message) (bool, error) {
	if msg == nil {
		return false, ErrMessageNil
	}

	now := q.now()
	if msg.IsExpiredAt(now) {
		return false, nil
	}

	var hash string
	if msg.Unique {
		hash = msg.UniqueKey()
	}

	data, err := msg.Marshal()
	if err != nil {
		return false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	b := q.bucket(msg.Queue)

	// Membership check and insertion share one critical section.
	if msg.Unique {
		if _, exists := b.unique[hash]; exists {
			return false, nil
		}
		b.unique[hash] = struct{}{}
	}

	if !msg.IsReadyAt(now) {
		entry := delayedEntry{readyAt: *msg.ReadyAt, data: data}
		// Keep delayed entries sorted by ready time, stable for equal times.
		i, _ := slices.BinarySearchFunc(b.delayed, entry.readyAt, func(e delayedEntry, t time.Time) int {
			if e.readyAt.After(t) {
				return 1
			}
			return -1
		})
		b.delayed = slices.Insert(b.delayed, i, entry)
		return true, nil
	}

	b.ready = append(b.ready, data)
	b.total++
	return true, nil
}

// Pop implements Queue
func (q *MemoryQueue) Pop(ctx context.Context, queue string) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	b, ok := q.queues[queue]
	if !ok {
		return nil, nil
	}

	now := q.now()
	due := 0
	for due < len(b.delayed) && !b.delayed[due].readyAt.After(now) {
		b.ready = append(b.ready, b.delayed[due].data)
		due++
	}
	if due > 0 {
		b.delayed = slices.Delete(b.delayed, 0, due)
		b.total += int64(due)
	}

	if len(b.ready) == 0 {
		return nil, nil
	}

	data := b.ready[0]
	b.ready[0] = nil
	b.ready = b.ready[1:]

	msg, err := UnmarshalMessage(data)
	if err != nil {
		return nil, err
	}

	if msg.Unique {
		delete(b.unique, msg.UniqueKey())
	}

	return msg, nil
}

// Fail implements Queue
func (q *MemoryQueue) Fail(ctx context.Context, msg *Message) (bool, error) {
	if msg == nil {
		return false, ErrMessageNil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}
	q.bucket(msg.Queue).failed++
	q.mu.Unlock()

	if !msg.ShouldRetryAt(q.now()) {
		return false, nil
	}
	return q.Push(ctx, msg)
}

// Complete implements Queue
func (q *MemoryQueue) Complete(ctx context.Context, msg *Message) error {
	if msg == nil {
		return ErrMessageNil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.bucket(msg.Queue).completed++
	return nil
}

// Clear implements Queue
func (q *MemoryQueue) Clear(ctx context.Context, queue string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if b, ok := q.queues[queue]; ok {
		b.ready = nil
		b.delayed = nil
		clear(b.unique)
		q.dropIfEmpty(queue)
	}
	return nil
}

// Reset implements Queue
func (q *MemoryQueue) Reset(ctx context.Context, queue string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if b, ok := q.queues[queue]; ok {
		b.completed, b.failed, b.total = 0, 0, 0
		q.dropIfEmpty(queue)
	}
	return nil
}

// Stats implements Queue
func (q *MemoryQueue) Stats(ctx context.Context, queue string) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.queues[queue]
	if !ok {
		return Stats{}, nil
	}
	return Stats{
		Queued:    int64(len(b.ready)),
		Delayed:   int64(len(b.delayed)),
		Completed: b.completed,
		Failed:    b.failed,
		Total:     b.total,
	}, nil
}

// Queues implements Queue
func (q *MemoryQueue) Queues(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	names := make([]string, 0, len(q.queues))
	for name, b := range q.queues {
		if !b.empty() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close implements Queue. Further operations fail with ErrQueueClosed.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	clear(q.queues)
	return nil
}

func (q *MemoryQueue) bucket(name string) *memoryBucket {
	b, ok := q.queues[name]
	if !ok {
		b = &memoryBucket{unique: make(map[string]struct{})}
		q.queues[name] = b
	}
	return b
}

func (q *MemoryQueue) dropIfEmpty(name string) {
	if b := q.queues[name]; b != nil && b.empty() {
		delete(q.queues, name)
	}
}

func (b *memoryBucket) empty() bool {
	return len(b.ready) == 0 && len(b.delayed) == 0 && len(b.unique) == 0 &&
		b.completed == 0 && b.failed == 0 && b.total == 0
}
