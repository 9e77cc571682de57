package redisqueue

import (
	"log/slog"
	"time"
)

const (
	// DefaultPrefix namespaces queue keys when no prefix is configured.
	DefaultPrefix = "queue"

	// DefaultPromoteRetries bounds how often a conflicted promotion is retried
	// within one Pop before the due messages are left for the next poll.
	DefaultPromoteRetries = 3

	defaultScanBatchSize = 100
)

// Option configures a Queue
type Option func(*Queue)

// WithPrefix sets the key prefix. Empty keeps DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(q *Queue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

// WithClock overrides the time source used for expiry and promotion
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithScanBatchSize sets the SCAN COUNT hint used by Queues
func WithScanBatchSize(n int64) Option {
	return func(q *Queue) {
		if n > 0 {
			q.scanBatchSize = n
		}
	}
}

// WithPromoteRetries sets how many times a promotion is retried after a
// concurrent change to the delayed set
func WithPromoteRetries(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.promoteRetries = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.logger = log
		}
	}
}
