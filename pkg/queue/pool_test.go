package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

func TestNewPool(t *testing.T) {
	t.Parallel()

	open := queue.Shared(queue.NewMemoryQueue())
	r := queue.NewRegistry()

	_, err := queue.NewPool(0, open, r)
	assert.ErrorIs(t, err, queue.ErrInvalidPoolSize)

	_, err = queue.NewPool(1, nil, r)
	assert.ErrorIs(t, err, queue.ErrQueueNil)

	_, err = queue.NewPool(1, open, nil)
	assert.ErrorIs(t, err, queue.ErrResolverNil)

	p, err := queue.NewPool(2, open, r)
	require.NoError(t, err)
	assert.Empty(t, p.Workers())
}

func TestPool_Run(t *testing.T) {
	t.Parallel()

	t.Run("drains a shared queue", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		ctx := context.Background()

		var runs atomic.Int64
		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Count", queue.DefaultMethod, func(context.Context, queue.Arguments) error {
			runs.Add(1)
			return nil
		}))
		for range 20 {
			_, err := q.Push(ctx, queue.NewMessage("jobs.Count", nil))
			require.NoError(t, err)
		}

		p, err := queue.NewPool(3, queue.Shared(q), r, workerOpts()...)
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- p.Run(runCtx) }()

		require.Eventually(t, func() bool { return runs.Load() == 20 }, 5*time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool { return len(p.Workers()) == 3 }, time.Second, time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("pool did not stop")
		}

		assert.Equal(t, 20, p.JobCount())
		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Completed: 20, Total: 20}, stats)
	})

	t.Run("stop ends every worker", func(t *testing.T) {
		t.Parallel()
		p, err := queue.NewPool(2, queue.Shared(queue.NewMemoryQueue()), queue.NewRegistry(),
			workerOpts(queue.WithSleepInterval(10*time.Millisecond))...)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- p.Run(context.Background()) }()

		require.Eventually(t, func() bool {
			p.Stop()
			select {
			case err := <-done:
				return assert.NoError(t, err)
			default:
				return false
			}
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("open failure cancels the others", func(t *testing.T) {
		t.Parallel()
		shared := queue.Shared(queue.NewMemoryQueue())
		refused := errors.New("refused")

		var calls atomic.Int64
		open := func(ctx context.Context) (queue.Queue, error) {
			if calls.Add(1) == 2 {
				return nil, refused
			}
			return shared(ctx)
		}

		p, err := queue.NewPool(3, open, queue.NewRegistry(), workerOpts()...)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = p.Run(ctx)
		assert.ErrorIs(t, err, refused)
		assert.NoError(t, ctx.Err())
	})

	t.Run("each worker owns its connection", func(t *testing.T) {
		t.Parallel()
		var closed atomic.Int64
		open := func(context.Context) (queue.Queue, error) {
			return &closeCounter{Queue: queue.NewMemoryQueue(), closed: &closed}, nil
		}

		p, err := queue.NewPool(4, open, queue.NewRegistry(),
			workerOpts(queue.WithMaxRuntime(10*time.Millisecond))...)
		require.NoError(t, err)

		require.NoError(t, p.Run(context.Background()))
		assert.Equal(t, int64(4), closed.Load())
		assert.Len(t, p.Workers(), 4)
	})
}

type closeCounter struct {
	queue.Queue
	closed *atomic.Int64
}

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	return c.Queue.Close()
}
