package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/jobq/pkg/logger"
	"github.com/dmitrymomot/jobq/pkg/queue"
	"github.com/dmitrymomot/jobq/pkg/redis"
)

// pushScript records the unique hash (if any) and stores the payload in one
// atomic step, so two producers can never both enqueue the same unique work.
//
// KEYS: ready, delayed, unique, total
// ARGV: payload, content hash or "", delayed score or ""
var pushScript = goredis.NewScript(`
if ARGV[2] ~= '' then
	if redis.call('SADD', KEYS[3], ARGV[2]) == 0 then
		return 0
	end
end
if ARGV[3] ~= '' then
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
else
	redis.call('LPUSH', KEYS[1], ARGV[1])
	redis.call('INCR', KEYS[4])
end
return 1
`)

// Queue implements queue.Queue on Redis.
type Queue struct {
	client         goredis.UniversalClient
	owned          bool
	prefix         string
	now            func() time.Time
	scanBatchSize  int64
	promoteRetries int
	logger         *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// New wraps an existing client. Close does not close a client passed here.
func New(client goredis.UniversalClient, opts ...Option) *Queue {
	q := &Queue{
		client:         client,
		prefix:         DefaultPrefix,
		now:            time.Now,
		scanBatchSize:  defaultScanBatchSize,
		promoteRetries: DefaultPromoteRetries,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(logger.Component("queue.redis"), slog.String("prefix", q.prefix))
	return q
}

// Connect dials Redis with cfg and returns a queue that owns the connection.
func Connect(ctx context.Context, cfg redis.Config, opts ...Option) (*Queue, error) {
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, errors.Join(queue.ErrConnection, err)
	}
	q := New(client, opts...)
	q.owned = true
	return q, nil
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

	var hash, score string
	if msg.Unique {
		hash = msg.UniqueKey()
	}

	data, err := msg.Marshal()
	if err != nil {
		return false, err
	}

	if !msg.IsReadyAt(now) {
		score = strconv.FormatInt(scoreOf(*msg.ReadyAt), 10)
	}

	k := q.keysFor(msg.Queue)
	added, err := pushScript.Run(ctx, q.client,
		[]string{k.ready, k.delayed, k.unique, k.total},
		data, hash, score,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to push message %s to %q: %w", msg.ID, msg.Queue, err)
	}
	return added == 1, nil
}

// Pop implements queue.Queue
func (q *Queue) Pop(ctx context.Context, name string) (*queue.Message, error) {
	k := q.keysFor(name)

	if err := q.promote(ctx, k); err != nil {
		return nil, fmt.Errorf("failed to promote delayed messages in %q: %w", name, err)
	}

	data, err := q.client.RPop(ctx, k.ready).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from %q: %w", name, err)
	}

	msg, err := queue.UnmarshalMessage(data)
	if err != nil {
		return nil, err
	}

	if msg.Unique {
		if err := q.client.SRem(ctx, k.unique, msg.UniqueKey()).Err(); err != nil {
			return nil, fmt.Errorf("failed to release unique hash for message %s: %w", msg.ID, err)
		}
	}

	return msg, nil
}

// promote moves every due delayed message into the ready list, oldest first.
// The delayed set is watched so that two workers promoting at once cannot
// both move the same payload; the loser retries, then gives up until the
// next poll.
func (q *Queue) promote(ctx context.Context, k keys) error {
	limit := strconv.FormatInt(q.now().UnixMilli(), 10)

	for range q.promoteRetries {
		err := q.client.Watch(ctx, func(tx *goredis.Tx) error {
			due, err := tx.ZRangeByScore(ctx, k.delayed, &goredis.ZRangeBy{Min: "-inf", Max: limit}).Result()
			if err != nil || len(due) == 0 {
				return err
			}

			members := make([]any, len(due))
			for i, m := range due {
				members[i] = m
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.LPush(ctx, k.ready, members...)
				pipe.ZRem(ctx, k.delayed, members...)
				pipe.IncrBy(ctx, k.total, int64(len(due)))
				return nil
			})
			return err
		}, k.delayed)

		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}

	q.logger.DebugContext(ctx, "delayed promotion conflicted, deferring to next poll",
		slog.String("key", k.delayed))
	return nil
}

// Fail implements queue.Queue
func (q *Queue) Fail(ctx context.Context, msg *queue.Message) (bool, error) {
	if msg == nil {
		return false, queue.ErrMessageNil
	}

	if err := q.client.Incr(ctx, q.keysFor(msg.Queue).failed).Err(); err != nil {
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
	if err := q.client.Incr(ctx, q.keysFor(msg.Queue).completed).Err(); err != nil {
		return fmt.Errorf("failed to count completion of message %s: %w", msg.ID, err)
	}
	return nil
}

// Clear implements queue.Queue
func (q *Queue) Clear(ctx context.Context, name string) error {
	k := q.keysFor(name)
	if err := q.client.Del(ctx, k.ready, k.delayed, k.unique).Err(); err != nil {
		return fmt.Errorf("failed to clear %q: %w", name, err)
	}
	return nil
}

// Reset implements queue.Queue
func (q *Queue) Reset(ctx context.Context, name string) error {
	k := q.keysFor(name)
	if err := q.client.Del(ctx, k.completed, k.failed, k.total).Err(); err != nil {
		return fmt.Errorf("failed to reset counters of %q: %w", name, err)
	}
	return nil
}

// Stats implements queue.Queue
func (q *Queue) Stats(ctx context.Context, name string) (queue.Stats, error) {
	k := q.keysFor(name)

	pipe := q.client.Pipeline()
	queued := pipe.LLen(ctx, k.ready)
	delayed := pipe.ZCard(ctx, k.delayed)
	completed := pipe.Get(ctx, k.completed)
	failed := pipe.Get(ctx, k.failed)
	total := pipe.Get(ctx, k.total)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return queue.Stats{}, fmt.Errorf("failed to read stats of %q: %w", name, err)
	}

	stats := queue.Stats{
		Queued:  queued.Val(),
		Delayed: delayed.Val(),
	}
	for dst, cmd := range map[*int64]*goredis.StringCmd{
		&stats.Completed: completed,
		&stats.Failed:    failed,
		&stats.Total:     total,
	} {
		n, err := counter(cmd)
		if err != nil {
			return queue.Stats{}, fmt.Errorf("failed to read stats of %q: %w", name, err)
		}
		*dst = n
	}
	return stats, nil
}

// Queues implements queue.Queue
func (q *Queue) Queues(ctx context.Context) ([]string, error) {
	found, err := redis.ScanKeys(ctx, q.client, q.prefix+":*", q.scanBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queues under %q: %w", q.prefix, err)
	}

	names := make([]string, 0, len(found))
	for _, key := range found {
		if name, ok := queueName(q.prefix, key); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Close closes the client if the queue opened it
func (q *Queue) Close() error {
	if !q.owned {
		return nil
	}
	return q.client.Close()
}

func counter(cmd *goredis.StringCmd) (int64, error) {
	n, err := cmd.Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return n, err
}

// scoreOf rounds t up to whole milliseconds so that a promoted message is
// never handed out before its ready time.
func scoreOf(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}
