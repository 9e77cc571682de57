package cli

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/jobq/pkg/broadcast"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

// Tally counts job outcome events received from a broadcaster.
type Tally struct {
	mu     sync.Mutex
	counts map[queue.EventKind]int
	done   chan struct{}
}

// NewTally subscribes to b and counts events until the subscription ends
func NewTally(ctx context.Context, b broadcast.Broadcaster[queue.Event]) *Tally {
	t := &Tally{
		counts: make(map[queue.EventKind]int),
		done:   make(chan struct{}),
	}
	sub := b.Subscribe(ctx)
	go func() {
		defer close(t.done)
		for msg := range sub.Receive() {
			t.mu.Lock()
			t.counts[msg.Data.Kind]++
			t.mu.Unlock()
		}
	}()
	return t
}

// Count returns how many events of kind were seen
func (t *Tally) Count(kind queue.EventKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Wait blocks until the subscription has ended
func (t *Tally) Wait() {
	<-t.done
}

// Log writes the totals as one record, skipping the write when nothing ran.
func (t *Tally) Log(ctx context.Context, log *slog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.counts) == 0 {
		return
	}
	log.InfoContext(ctx, "job outcomes",
		slog.Int("succeeded", t.counts[queue.EventSuccess]),
		slog.Int("failed", t.counts[queue.EventFailure]),
		slog.Int("raised", t.counts[queue.EventException]),
		slog.Int("invalid", t.counts[queue.EventInvalid]))
}
