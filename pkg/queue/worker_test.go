package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/jobq/pkg/logger"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

// MockQueue is a testify mock of queue.Queue
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Push(ctx context.Context, msg *queue.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueue) Pop(ctx context.Context, name string) (*queue.Message, error) {
	args := m.Called(ctx, name)
	msg, _ := args.Get(0).(*queue.Message)
	return msg, args.Error(1)
}

func (m *MockQueue) Fail(ctx context.Context, msg *queue.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueue) Complete(ctx context.Context, msg *queue.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockQueue) Clear(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockQueue) Reset(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockQueue) Stats(ctx context.Context, name string) (queue.Stats, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(queue.Stats), args.Error(1)
}

func (m *MockQueue) Queues(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockQueue) Close() error {
	return m.Called().Error(0)
}

// recorder collects listener notifications
type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) add(ev queue.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnStart(_ context.Context, msg *queue.Message) {
	r.add(queue.Event{Kind: queue.EventStart, Message: msg})
}

func (r *recorder) OnSuccess(_ context.Context, msg *queue.Message) {
	r.add(queue.Event{Kind: queue.EventSuccess, Message: msg})
}

func (r *recorder) OnFailure(_ context.Context, msg *queue.Message, retried bool) {
	r.add(queue.Event{Kind: queue.EventFailure, Message: msg, Retried: retried})
}

func (r *recorder) OnException(_ context.Context, msg *queue.Message, err error, retried bool) {
	r.add(queue.Event{Kind: queue.EventException, Message: msg, Err: err, Retried: retried})
}

func (r *recorder) OnInvalid(_ context.Context, msg *queue.Message) {
	r.add(queue.Event{Kind: queue.EventInvalid, Message: msg})
}

func (r *recorder) kinds() []queue.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]queue.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (r *recorder) all() []queue.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Event(nil), r.events...)
}

func workerOpts(extra ...queue.WorkerOption) []queue.WorkerOption {
	return append([]queue.WorkerOption{
		queue.WithoutSignalHandling(),
		queue.WithRestInterval(0),
		queue.WithSleepInterval(5 * time.Millisecond),
		queue.WithWorkerLogger(logger.Discard()),
	}, extra...)
}

func runWorker(t *testing.T, q queue.Queue, r queue.Resolver, opts ...queue.WorkerOption) *queue.Worker {
	t.Helper()
	w, err := queue.NewWorker(q, r, workerOpts(opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Run(ctx))
	require.NoError(t, ctx.Err(), "worker should stop on its own")
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil, queue.NewRegistry())
	assert.ErrorIs(t, err, queue.ErrQueueNil)

	_, err = queue.NewWorker(queue.NewMemoryQueue(), nil)
	assert.ErrorIs(t, err, queue.ErrResolverNil)

	w, err := queue.NewWorker(queue.NewMemoryQueue(), queue.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, queue.WorkerIdle, w.State())
	assert.NotEmpty(t, w.ID())
}

func TestWorker_Outcomes(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		ctx := context.Background()
		r := queue.NewRegistry()

		var got queue.Arguments
		require.NoError(t, r.Register("jobs.Greet", queue.DefaultMethod, func(_ context.Context, args queue.Arguments) error {
			got = args
			return nil
		}))
		_, err := q.Push(ctx, queue.NewMessage("jobs.Greet", queue.Arguments{"name": "ann"}))
		require.NoError(t, err)

		rec := &recorder{}
		w := runWorker(t, q, r, queue.WithMaxJobs(1), queue.WithListeners(rec))

		assert.Equal(t, "ann", got["name"])
		assert.Equal(t, []queue.EventKind{queue.EventStart, queue.EventSuccess}, rec.kinds())
		assert.Equal(t, 1, w.JobCount())
		assert.Equal(t, queue.WorkerStopped, w.State())

		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Completed: 1, Total: 1}, stats)
	})

	t.Run("method dispatch", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		r := queue.NewRegistry()

		var called string
		require.NoError(t, r.RegisterTarget("jobs.Report", map[string]queue.Func{
			"daily":  func(context.Context, queue.Arguments) error { called = "daily"; return nil },
			"weekly": func(context.Context, queue.Arguments) error { called = "weekly"; return nil },
		}))
		_, err := q.Push(context.Background(), queue.NewMessage("jobs.Report", nil, queue.WithMethod("weekly")))
		require.NoError(t, err)

		runWorker(t, q, r, queue.WithMaxJobs(1))
		assert.Equal(t, "weekly", called)
	})

	t.Run("invalid target is dropped", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		ctx := context.Background()

		_, err := q.Push(ctx, queue.NewMessage("jobs.Unknown", nil))
		require.NoError(t, err)

		rec := &recorder{}
		w := runWorker(t, q, queue.NewRegistry(), queue.WithMaxJobs(1), queue.WithListeners(rec))

		assert.Equal(t, []queue.EventKind{queue.EventInvalid}, rec.kinds())
		assert.Equal(t, 1, w.JobCount())

		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Total: 1}, stats)
	})

	t.Run("soft failure retries until max", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		ctx := context.Background()
		r := queue.NewRegistry()

		runs := 0
		require.NoError(t, r.Register("jobs.Flaky", queue.DefaultMethod, func(context.Context, queue.Arguments) error {
			runs++
			return fmt.Errorf("remote said no: %w", queue.ErrJobFailed)
		}))
		_, err := q.Push(ctx, queue.NewMessage("jobs.Flaky", nil, queue.WithMaxRetries(3)))
		require.NoError(t, err)

		rec := &recorder{}
		runWorker(t, q, r, queue.WithMaxJobs(3), queue.WithListeners(rec))

		assert.Equal(t, 3, runs)
		var retried []bool
		for _, ev := range rec.all() {
			if ev.Kind == queue.EventFailure {
				retried = append(retried, ev.Retried)
			}
		}
		assert.Equal(t, []bool{true, true, false}, retried)

		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Failed: 3, Total: 3}, stats)
	})

	t.Run("hard failure and panic", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		ctx := context.Background()
		r := queue.NewRegistry()

		boom := errors.New("boom")
		require.NoError(t, r.Register("jobs.Broken", queue.DefaultMethod, func(context.Context, queue.Arguments) error {
			return boom
		}))
		require.NoError(t, r.Register("jobs.Panics", queue.DefaultMethod, func(context.Context, queue.Arguments) error {
			panic("kaboom")
		}))
		_, err := q.Push(ctx, queue.NewMessage("jobs.Broken", nil, queue.WithRetry(false)))
		require.NoError(t, err)
		_, err = q.Push(ctx, queue.NewMessage("jobs.Panics", nil, queue.WithRetry(false)))
		require.NoError(t, err)

		rec := &recorder{}
		runWorker(t, q, r, queue.WithMaxJobs(2), queue.WithListeners(rec))

		var errs []error
		for _, ev := range rec.all() {
			if ev.Kind == queue.EventException {
				assert.False(t, ev.Retried)
				errs = append(errs, ev.Err)
			}
		}
		require.Len(t, errs, 2)
		assert.ErrorIs(t, errs[0], boom)
		assert.ErrorIs(t, errs[1], queue.ErrJobPanicked)
		assert.Contains(t, errs[1].Error(), "kaboom")

		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Failed: 2, Total: 2}, stats)
	})

	t.Run("expired message is dropped silently", func(t *testing.T) {
		t.Parallel()
		// the store still considers the message live when it is pushed
		q := queue.NewMemoryQueue(queue.WithMemoryClock(func() time.Time { return time.Now().Add(-time.Hour) }))
		ctx := context.Background()
		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Late", queue.DefaultMethod, func(context.Context, queue.Arguments) error {
			t.Error("expired job must not run")
			return nil
		}))

		ok, err := q.Push(ctx, queue.NewMessage("jobs.Late", nil,
			queue.WithReadyAt(time.Now().Add(-2*time.Hour)),
			queue.WithExpiresAt(time.Now().Add(-time.Minute))))
		require.NoError(t, err)
		require.True(t, ok)

		rec := &recorder{}
		w := runWorker(t, q, r, queue.WithMaxJobs(1), queue.WithListeners(rec))

		assert.Empty(t, rec.kinds())
		assert.Equal(t, 1, w.JobCount())
		stats, err := q.Stats(ctx, queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{Total: 1}, stats)
	})

	t.Run("job context outlives worker cancellation", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		r := queue.NewRegistry()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var jobErr error
		require.NoError(t, r.Register("jobs.Slow", queue.DefaultMethod, func(jctx context.Context, _ queue.Arguments) error {
			cancel()
			jobErr = jctx.Err()
			return nil
		}))
		_, err := q.Push(context.Background(), queue.NewMessage("jobs.Slow", nil))
		require.NoError(t, err)

		w, err := queue.NewWorker(q, r, workerOpts()...)
		require.NoError(t, err)
		require.NoError(t, w.Run(ctx))

		assert.NoError(t, jobErr)
		stats, err := q.Stats(context.Background(), queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Completed)
	})
}

func TestWorker_ListenerIsolation(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	ctx := context.Background()
	r := queue.NewRegistry()
	require.NoError(t, r.Register("jobs.Echo", queue.DefaultMethod, noop))
	_, err := q.Push(ctx, queue.NewMessage("jobs.Echo", nil))
	require.NoError(t, err)

	panicky := queue.ListenerFuncs{
		Start:   func(context.Context, *queue.Message) { panic("listener bug") },
		Success: func(context.Context, *queue.Message) { panic("listener bug") },
	}
	rec := &recorder{}
	runWorker(t, q, r, queue.WithMaxJobs(1), queue.WithListeners(panicky, struct{}{}, rec))

	assert.Equal(t, []queue.EventKind{queue.EventStart, queue.EventSuccess}, rec.kinds())
	stats, err := q.Stats(ctx, queue.DefaultQueueName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("runs once", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(queue.NewMemoryQueue(), queue.NewRegistry(), workerOpts(queue.WithMaxRuntime(time.Millisecond))...)
		require.NoError(t, err)

		require.NoError(t, w.Run(context.Background()))
		assert.ErrorIs(t, w.Run(context.Background()), queue.ErrWorkerAlreadyStarted)
		assert.Equal(t, queue.WorkerStopped, w.State())
	})

	t.Run("context cancellation stops idle worker", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(queue.NewMemoryQueue(), queue.NewRegistry(),
			workerOpts(queue.WithSleepInterval(time.Hour))...)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		require.Eventually(t, func() bool { return w.State() == queue.WorkerRunning }, time.Second, time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})

	t.Run("stop wakes sleeping worker", func(t *testing.T) {
		t.Parallel()
		w, err := queue.NewWorker(queue.NewMemoryQueue(), queue.NewRegistry(),
			workerOpts(queue.WithSleepInterval(time.Hour))...)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- w.Run(context.Background()) }()

		require.Eventually(t, func() bool { return w.State() == queue.WorkerRunning }, time.Second, time.Millisecond)
		w.Stop()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})

	t.Run("stop before run is honoured", func(t *testing.T) {
		t.Parallel()
		q := queue.NewMemoryQueue()
		_, err := q.Push(context.Background(), queue.NewMessage("jobs.Echo", nil))
		require.NoError(t, err)

		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Echo", queue.DefaultMethod, func(context.Context, queue.Arguments) error { return nil }))

		w, err := queue.NewWorker(q, r, workerOpts(queue.WithSleepInterval(time.Hour))...)
		require.NoError(t, err)
		w.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Run(ctx))
		require.NoError(t, ctx.Err(), "run returns without waiting")
		assert.Zero(t, w.JobCount())
		assert.Equal(t, queue.WorkerStopped, w.State())

		stats, err := q.Stats(context.Background(), queue.DefaultQueueName)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Queued)
	})

	t.Run("max runtime", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		runWorker(t, queue.NewMemoryQueue(), queue.NewRegistry(),
			queue.WithMaxRuntime(30*time.Millisecond), queue.WithSleepInterval(5*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})
}

func TestWorker_StoreErrors(t *testing.T) {
	t.Parallel()

	t.Run("pop failure ends run", func(t *testing.T) {
		t.Parallel()
		q := &MockQueue{}
		down := errors.New("connection refused")
		q.On("Pop", mock.Anything, queue.DefaultQueueName).Return(nil, down).Once()

		w, err := queue.NewWorker(q, queue.NewRegistry(), workerOpts()...)
		require.NoError(t, err)

		err = w.Run(context.Background())
		assert.ErrorIs(t, err, queue.ErrTransport)
		assert.ErrorIs(t, err, down)
		q.AssertExpectations(t)
	})

	t.Run("undecodable entry is skipped", func(t *testing.T) {
		t.Parallel()
		q := &MockQueue{}
		q.On("Pop", mock.Anything, "emails").Return(nil, queue.ErrMalformedMessage).Once()

		w, err := queue.NewWorker(q, queue.NewRegistry(), workerOpts(queue.WithWorkerQueue("emails"), queue.WithMaxJobs(1))...)
		require.NoError(t, err)

		require.NoError(t, w.Run(context.Background()))
		assert.Equal(t, 1, w.JobCount())
		q.AssertExpectations(t)
	})

	t.Run("complete failure ends run", func(t *testing.T) {
		t.Parallel()
		q := &MockQueue{}
		msg := queue.NewMessage("jobs.Echo", nil)
		q.On("Pop", mock.Anything, queue.DefaultQueueName).Return(msg, nil).Once()
		q.On("Complete", mock.Anything, msg).Return(errors.New("write failed")).Once()

		r := queue.NewRegistry()
		require.NoError(t, r.Register("jobs.Echo", queue.DefaultMethod, noop))

		w, err := queue.NewWorker(q, r, workerOpts()...)
		require.NoError(t, err)

		assert.ErrorIs(t, w.Run(context.Background()), queue.ErrTransport)
		q.AssertExpectations(t)
	})
}
