package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/jobq/pkg/logger"
)

// WorkerState is the lifecycle state of a worker
type WorkerState int32

const (
	// WorkerIdle is a worker that has not been run yet
	WorkerIdle WorkerState = iota
	// WorkerRunning is a worker inside Run
	WorkerRunning
	// WorkerStopped is a worker whose Run has returned. It cannot run again.
	WorkerStopped
)

// String returns the lowercase state name
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker polls one logical queue and runs its messages one at a time.
// A worker runs once: after Run returns it stays stopped.
type Worker struct {
	queue    Queue
	resolver Resolver
	workerID uuid.UUID
	notify   *notifier
	logger   *slog.Logger

	name          string
	maxJobs       int
	maxRuntime    time.Duration
	restInterval  time.Duration
	sleepInterval time.Duration
	signals       []os.Signal
	handleSignals bool

	state     atomic.Int32
	running   atomic.Bool
	stopReq   atomic.Bool
	jobCount  atomic.Int64
	startedAt time.Time
	wake      chan struct{}
}

// NewWorker creates a worker polling q and resolving targets through r
func NewWorker(q Queue, r Resolver, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if r == nil {
		return nil, ErrResolverNil
	}

	options := defaultWorkerOptions()
	for _, opt := range opts {
		opt(options)
	}

	workerID := uuid.New()
	log := options.logger.With(
		logger.Component("queue.worker"),
		logger.WorkerID(workerID.String()),
		logger.Queue(options.queue),
	)

	return &Worker{
		queue:         q,
		resolver:      r,
		workerID:      workerID,
		notify:        &notifier{listeners: options.listeners, log: log},
		logger:        log,
		name:          options.queue,
		maxJobs:       options.maxJobs,
		maxRuntime:    options.maxRuntime,
		restInterval:  options.restInterval,
		sleepInterval: options.sleepInterval,
		signals:       options.signals,
		handleSignals: options.handleSignals,
		wake:          make(chan struct{}, 1),
	}, nil
}

// ID returns the worker identifier used in logs
func (w *Worker) ID() string {
	return w.workerID.String()
}

// State returns the current lifecycle state
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// JobCount returns how many messages the current or last run processed,
// including invalid and expired ones
func (w *Worker) JobCount() int {
	return int(w.jobCount.Load())
}

// Stop asks a running worker to exit after the current job. A Stop before
// Run makes Run return without polling.
func (w *Worker) Stop() {
	w.stopReq.Store(true)
	w.running.Store(false)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls the queue until the worker is stopped, ctx is done, or a job or
// runtime cap is reached. SIGTERM and SIGQUIT stop it cooperatively between
// jobs. A store failure ends the loop with an error wrapping ErrTransport.
func (w *Worker) Run(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerRunning)) {
		return ErrWorkerAlreadyStarted
	}
	defer w.state.Store(int32(WorkerStopped))

	w.startedAt = time.Now()
	w.jobCount.Store(0)
	w.running.Store(true)
	if w.stopReq.Load() {
		w.running.Store(false)
	}

	if w.handleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, w.signals...)
		done := make(chan struct{})
		defer func() {
			signal.Stop(sigCh)
			close(done)
		}()

		go func() {
			select {
			case sig := <-sigCh:
				w.logger.Info("worker received signal, stopping after current job",
					slog.String("signal", sig.String()))
				w.Stop()
			case <-done:
			}
		}()
	}

	w.logger.Info("worker started",
		slog.Int("max_jobs", w.maxJobs),
		slog.Duration("max_runtime", w.maxRuntime))

	for w.shouldContinue(ctx) {
		msg, err := w.queue.Pop(ctx, w.name)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, ErrMalformedMessage) {
				w.logger.Error("dropped undecodable message", logger.Error(err))
				w.jobCount.Add(1)
				continue
			}
			w.logger.Error("failed to pop message", logger.Error(err))
			return errors.Join(ErrTransport, err)
		}

		if msg == nil {
			w.pause(ctx, w.sleepInterval)
			continue
		}

		if err := w.process(ctx, msg); err != nil {
			w.logger.Error("failed to record job outcome",
				logger.MessageID(msg.ID.String()),
				logger.Error(err))
			return errors.Join(ErrTransport, err)
		}

		w.pause(ctx, w.restInterval)
	}

	w.logger.Info("worker stopped",
		slog.Int("jobs", w.JobCount()),
		logger.Duration(time.Since(w.startedAt)))

	return nil
}

func (w *Worker) shouldContinue(ctx context.Context) bool {
	if !w.running.Load() || ctx.Err() != nil {
		return false
	}
	if w.maxJobs > 0 && w.JobCount() >= w.maxJobs {
		return false
	}
	if w.maxRuntime > 0 && time.Since(w.startedAt) >= w.maxRuntime {
		return false
	}
	return true
}

// pause waits for d, returning early on stop or cancellation.
func (w *Worker) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-w.wake:
	}
}

// process runs one message and records its outcome. Job-level outcomes are
// reported through listeners; only store failures are returned.
func (w *Worker) process(ctx context.Context, msg *Message) error {
	defer w.jobCount.Add(1)

	// Bookkeeping and the job itself must not be cut short by the worker
	// being cancelled mid-job.
	jobCtx := logger.WithAttrs(context.WithoutCancel(ctx),
		logger.MessageID(msg.ID.String()),
		logger.Target(msg.Target))

	fn, ok := w.resolver.Lookup(msg.Target, msg.Method)
	if !ok {
		w.logger.WarnContext(jobCtx, "no job func for message target",
			logger.Method(msg.Method))
		w.notify.invalid(jobCtx, msg)
		return nil
	}

	if msg.IsExpired() {
		w.logger.DebugContext(jobCtx, "dropped expired message")
		return nil
	}

	w.notify.start(jobCtx, msg)

	start := time.Now()
	execErr := invoke(jobCtx, fn, msg.Arguments)
	duration := time.Since(start)

	switch {
	case execErr == nil:
		if err := w.queue.Complete(jobCtx, msg); err != nil {
			return err
		}
		w.logger.InfoContext(jobCtx, "job completed", logger.Duration(duration))
		w.notify.success(jobCtx, msg)

	case errors.Is(execErr, ErrJobFailed):
		retried, err := w.queue.Fail(jobCtx, msg)
		if err != nil {
			return err
		}
		w.logger.WarnContext(jobCtx, "job failed",
			logger.Attempt(msg.Attempts),
			slog.Bool("retried", retried),
			logger.Duration(duration))
		w.notify.failure(jobCtx, msg, retried)

	default:
		retried, err := w.queue.Fail(jobCtx, msg)
		if err != nil {
			return err
		}
		w.logger.ErrorContext(jobCtx, "job raised an error",
			logger.Attempt(msg.Attempts),
			slog.Bool("retried", retried),
			logger.Duration(duration),
			logger.Error(execErr))
		w.notify.exception(jobCtx, msg, execErr, retried)
	}

	return nil
}
