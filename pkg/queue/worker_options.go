package queue

import (
	"log/slog"
	"os"
	"syscall"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queue         string
	maxJobs       int
	maxRuntime    time.Duration
	restInterval  time.Duration
	sleepInterval time.Duration
	listeners     []Listener
	signals       []os.Signal
	handleSignals bool
	logger        *slog.Logger
}

func defaultWorkerOptions() *workerOptions {
	return &workerOptions{
		queue:         DefaultQueueName,
		restInterval:  10 * time.Millisecond,
		sleepInterval: time.Second,
		signals:       []os.Signal{syscall.SIGTERM, syscall.SIGQUIT},
		handleSignals: true,
		logger:        slog.Default(),
	}
}

// WithWorkerQueue sets the logical queue the worker polls
func WithWorkerQueue(name string) WorkerOption {
	return func(o *workerOptions) {
		if name != "" {
			o.queue = name
		}
	}
}

// WithMaxJobs stops the worker after n processed messages; 0 means no cap
func WithMaxJobs(n int) WorkerOption {
	return func(o *workerOptions) {
		if n >= 0 {
			o.maxJobs = n
		}
	}
}

// WithMaxRuntime stops the worker once d has elapsed; 0 means no cap.
// The check happens between jobs, a running job is never interrupted.
func WithMaxRuntime(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.maxRuntime = d
		}
	}
}

// WithRestInterval sets the pause after each processed message
func WithRestInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d >= 0 {
			o.restInterval = d
		}
	}
}

// WithSleepInterval sets the pause after polling an empty queue
func WithSleepInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.sleepInterval = d
		}
	}
}

// WithListeners adds notification listeners
func WithListeners(listeners ...Listener) WorkerOption {
	return func(o *workerOptions) {
		for _, l := range listeners {
			if l != nil {
				o.listeners = append(o.listeners, l)
			}
		}
	}
}

// WithSignals replaces the termination signals (SIGTERM and SIGQUIT by default)
func WithSignals(signals ...os.Signal) WorkerOption {
	return func(o *workerOptions) {
		if len(signals) > 0 {
			o.signals = signals
		}
	}
}

// WithoutSignalHandling leaves process signals alone; the worker then stops
// only through context cancellation, Stop or its caps.
func WithoutSignalHandling() WorkerOption {
	return func(o *workerOptions) {
		o.handleSignals = false
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
