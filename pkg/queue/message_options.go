package queue

import "time"

// MessageOption is a functional option for NewMessage and Manager.Enqueue
type MessageOption func(*messageOptions)

type messageOptions struct {
	method     string
	config     string
	queue      string
	delay      time.Duration
	readyAt    *time.Time
	expires    time.Duration
	expiresAt  *time.Time
	retry      bool
	maxRetries int
	unique     bool
	now        func() time.Time
}

// WithMethod sets the target method to invoke
func WithMethod(method string) MessageOption {
	return func(o *messageOptions) {
		if method != "" {
			o.method = method
		}
	}
}

// WithConfig selects the registry key of the queue store
func WithConfig(key string) MessageOption {
	return func(o *messageOptions) {
		if key != "" {
			o.config = key
		}
	}
}

// WithQueue sets the logical queue name
func WithQueue(queue string) MessageOption {
	return func(o *messageOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithDelay postpones the message by d from construction time.
// Ignored when WithReadyAt is also given.
func WithDelay(d time.Duration) MessageOption {
	return func(o *messageOptions) {
		o.delay = d
	}
}

// WithReadyAt sets the earliest time the message may run
func WithReadyAt(t time.Time) MessageOption {
	return func(o *messageOptions) {
		o.readyAt = &t
	}
}

// WithExpires invalidates the message d after construction.
// A negative duration yields an already expired message.
// Ignored when WithExpiresAt is also given.
func WithExpires(d time.Duration) MessageOption {
	return func(o *messageOptions) {
		o.expires = d
	}
}

// WithExpiresAt sets the time after which the message is discarded
func WithExpiresAt(t time.Time) MessageOption {
	return func(o *messageOptions) {
		o.expiresAt = &t
	}
}

// WithRetry enables or disables retrying after a failure
func WithRetry(retry bool) MessageOption {
	return func(o *messageOptions) {
		o.retry = retry
	}
}

// WithMaxRetries caps how many times a retrying message runs
func WithMaxRetries(n int) MessageOption {
	return func(o *messageOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithUnique drops the push when an identical message (same content hash)
// is already waiting in the queue
func WithUnique(unique bool) MessageOption {
	return func(o *messageOptions) {
		o.unique = unique
	}
}

// WithMessageClock overrides the construction time source
func WithMessageClock(now func() time.Time) MessageOption {
	return func(o *messageOptions) {
		if now != nil {
			o.now = now
		}
	}
}
