package pgqueue

import (
	"log/slog"
	"time"
)

// DefaultNamespace separates queue data of different configs sharing one
// database when no prefix is configured.
const DefaultNamespace = "queue"

// Option configures a Queue
type Option func(*Queue)

// WithNamespace sets the namespace. Empty keeps DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(q *Queue) {
		if ns != "" {
			q.namespace = ns
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

// WithoutMigrations skips applying the schema on Connect
func WithoutMigrations() Option {
	return func(q *Queue) {
		q.migrate = false
	}
}

// WithMigrationsTable sets the goose version table used on Connect
func WithMigrationsTable(table string) Option {
	return func(q *Queue) {
		if table != "" {
			q.migrationsTable = table
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
