package pgqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/jobq/pkg/logger"
	"github.com/dmitrymomot/jobq/pkg/pg"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

// Queue implements queue.Queue on PostgreSQL.
type Queue struct {
	pool            *pgxpool.Pool
	owned           bool
	namespace       string
	now             func() time.Time
	migrate         bool
	migrationsTable string
	logger          *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// New wraps an existing pool. The schema must already exist (see Migrate).
// Close does not close a pool passed here.
func New(pool *pgxpool.Pool, opts ...Option) *Queue {
	q := &Queue{
		pool:      pool,
		namespace: DefaultNamespace,
		now:       time.Now,
		migrate:   true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(logger.Component("queue.postgres"), slog.String("namespace", q.namespace))
	return q
}

// Connect opens a pool with cfg, applies the schema and returns a queue that
// owns the pool.
func Connect(ctx context.Context, cfg pg.Config, opts ...Option) (*Queue, error) {
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, errors.Join(queue.ErrConnection, err)
	}

	q := New(pool, append([]Option{WithMigrationsTable(cfg.MigrationsTable)}, opts...)...)
	q.owned = true

	if q.migrate {
		if err := q.Migrate(ctx); err != nil {
			pool.Close()
			return nil, errors.Join(queue.ErrConnection, err)
		}
	}
	return q, nil
}

// Migrate creates or upgrades the queue tables
func (q *Queue) Migrate(ctx context.Context) error {
	return pg.Migrate(ctx, q.pool, Migrations, MigrationsDir, q.migrationsTable, q.logger)
}

// Push implements queue.Queue
func (q *Queue) Push(ctx context.Context, msg *queue.Message) (bool, error) {
	if msg == nil {
		return false, queue.ErrMessageNil
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

	ready := msg.IsReadyAt(now)
	readyAt := now
	if !ready {
		readyAt = *msg.ReadyAt
	}

	added := false
	err = pg.WithTx(ctx, q.pool, func(tx pgx.Tx) error {
		if msg.Unique {
			tag, err := tx.Exec(ctx, insertUniqueSQL, q.namespace, msg.Queue, hash)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
		}

		if _, err := tx.Exec(ctx, insertMessageSQL, q.namespace, msg.Queue, data, readyAt, ready); err != nil {
			return err
		}
		if ready {
			if err := addCounters(ctx, tx, q.namespace, msg.Queue, 0, 0, 1); err != nil {
				return err
			}
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to push message %s to %q: %w", msg.ID, msg.Queue, err)
	}
	return added, nil
}

// Pop implements queue.Queue. A payload that cannot be decoded is removed
// and reported as queue.ErrMalformedMessage.
func (q *Queue) Pop(ctx context.Context, name string) (*queue.Message, error) {
	var (
		msg       *queue.Message
		decodeErr error
	)

	err := pg.WithTx(ctx, q.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, promoteSQL, q.namespace, name, q.now())
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			if err := addCounters(ctx, tx, q.namespace, name, 0, 0, n); err != nil {
				return err
			}
		}

		var payload []byte
		if err := tx.QueryRow(ctx, popSQL, q.namespace, name).Scan(&payload); err != nil {
			if pg.IsNotFoundError(err) {
				return nil
			}
			return err
		}

		msg, decodeErr = queue.UnmarshalMessage(payload)
		if decodeErr != nil {
			return nil
		}

		if msg.Unique {
			if _, err := tx.Exec(ctx, deleteUniqueSQL, q.namespace, name, msg.UniqueKey()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop from %q: %w", name, err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return msg, nil
}

// Fail implements queue.Queue
func (q *Queue) Fail(ctx context.Context, msg *queue.Message) (bool, error) {
	if msg == nil {
		return false, queue.ErrMessageNil
	}

	if err := addCounters(ctx, q.pool, q.namespace, msg.Queue, 0, 1, 0); err != nil {
		return false, fmt.Errorf("failed to count failure of message %s: %w", msg.ID, err)
	}

	if !msg.ShouldRetryAt(q.now()) {
		return false, nil
	}
	return q.Push(ctx, msg)
}

// Complete implements queue.Queue
func (q *Queue) Complete(ctx context.Context, msg *queue.Message) error {
	if msg == nil {
		return queue.ErrMessageNil
	}
	if err := addCounters(ctx, q.pool, q.namespace, msg.Queue, 1, 0, 0); err != nil {
		return fmt.Errorf("failed to count completion of message %s: %w", msg.ID, err)
	}
	return nil
}

// Clear implements queue.Queue
func (q *Queue) Clear(ctx context.Context, name string) error {
	err := pg.WithTx(ctx, q.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearMessagesSQL, q.namespace, name); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, clearUniqueSQL, q.namespace, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear %q: %w", name, err)
	}
	return nil
}

// Reset implements queue.Queue
func (q *Queue) Reset(ctx context.Context, name string) error {
	if _, err := q.pool.Exec(ctx, resetCountersSQL, q.namespace, name); err != nil {
		return fmt.Errorf("failed to reset counters of %q: %w", name, err)
	}
	return nil
}

// Stats implements queue.Queue
func (q *Queue) Stats(ctx context.Context, name string) (queue.Stats, error) {
	var s queue.Stats
	err := q.pool.QueryRow(ctx, statsSQL, q.namespace, name).
		Scan(&s.Queued, &s.Delayed, &s.Completed, &s.Failed, &s.Total)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("failed to read stats of %q: %w", name, err)
	}
	return s, nil
}

// Queues implements queue.Queue
func (q *Queue) Queues(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx, queuesSQL, q.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues in %q: %w", q.namespace, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list queues in %q: %w", q.namespace, err)
	}
	return names, nil
}

// Close closes the pool if the queue opened it
func (q *Queue) Close() error {
	if q.owned {
		q.pool.Close()
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func addCounters(ctx context.Context, db execer, ns, name string, completed, failed, total int64) error {
	_, err := db.Exec(ctx, addCountersSQL, ns, name, completed, failed, total)
	return err
}
