package queue

import "errors"

// Error classes. Concrete errors are joined with one of these so callers can
// branch with errors.Is.
var (
	// ErrConfiguration marks setup-time failures: unknown handler, duplicate
	// config key, bad store parameters. Never retried.
	ErrConfiguration = errors.New("queue configuration error")

	// ErrConnection marks failures to reach, authenticate against or select
	// the backing store while constructing a queue.
	ErrConnection = errors.New("queue connection error")

	// ErrTransport marks a store call that failed after construction.
	// It terminates Worker.Run.
	ErrTransport = errors.New("queue transport failure")
)

var (
	// ErrJobFailed is returned (or wrapped) by a job func to report an
	// unsuccessful run without raising. The message is failed and may be retried.
	ErrJobFailed = errors.New("job failed")

	// ErrJobPanicked wraps a value recovered from a panicking job func.
	ErrJobPanicked = errors.New("job panicked")

	// ErrMessageNil is returned when a nil message is pushed, failed or completed.
	ErrMessageNil = errors.New("message cannot be nil")

	// ErrMalformedMessage is returned by Pop when a stored entry cannot be decoded.
	// The entry has already been removed from the store.
	ErrMalformedMessage = errors.New("malformed message in queue")

	// ErrQueueNil is returned when a nil queue is provided
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrResolverNil is returned when a worker is built without a target resolver
	ErrResolverNil = errors.New("target resolver cannot be nil")

	// ErrInvalidTarget is returned when registering a target with an empty name or nil func
	ErrInvalidTarget = errors.New("invalid job target")

	// ErrTargetAlreadyRegistered is returned when registering a duplicate target method
	ErrTargetAlreadyRegistered = errors.New("job target already registered")

	// ErrWorkerAlreadyStarted is returned by Run on a worker that is running or stopped
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrQueueClosed is returned by operations on a closed in-memory queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrInvalidPoolSize is returned when a pool is created with size < 1
	ErrInvalidPoolSize = errors.New("pool size must be at least 1")
)

// Configuration errors, always joined with ErrConfiguration.
var (
	ErrUnknownHandler  = errors.New("unknown queue handler")
	ErrConfigExists    = errors.New("queue config already exists")
	ErrConfigNotFound  = errors.New("queue config not found")
	ErrInvalidConfig   = errors.New("invalid queue config")
	ErrUnknownListener = errors.New("unknown queue listener")
)

// Scheduler errors.
var (
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrScheduleExists    = errors.New("schedule already registered")
	ErrSchedulerEmpty    = errors.New("scheduler has no entries")
	ErrSchedulerNotReady = errors.New("scheduler needs a queue")
)
