package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/jobq/pkg/queue"
	"github.com/dmitrymomot/jobq/pkg/redis"
)

// Handler is the name the driver is registered under in a queue.Manager.
const Handler = "redis"

// Driver returns a queue.Driver that connects with base, overridden by the
// entry's URL and prefix. Recognised entry options:
//
//	scan_batch_size  SCAN COUNT hint for Queues
//	promote_retries  retries of a conflicted promotion per Pop
func Driver(base redis.Config, log *slog.Logger) queue.Driver {
	return func(ctx context.Context, key string, cfg queue.QueueConfig) (queue.Queue, error) {
		opts := []Option{WithPrefix(cfg.Prefix), WithLogger(log)}

		if v, ok := cfg.Options["scan_batch_size"]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				return nil, invalidOption(key, "scan_batch_size", v)
			}
			opts = append(opts, WithScanBatchSize(n))
		}
		if v, ok := cfg.Options["promote_retries"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, invalidOption(key, "promote_retries", v)
			}
			opts = append(opts, WithPromoteRetries(n))
		}

		q, err := Connect(ctx, base.WithURL(cfg.URL), opts...)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
}

func invalidOption(key, name, value string) error {
	return errors.Join(queue.ErrConfiguration, queue.ErrInvalidConfig,
		fmt.Errorf("queue config %q: option %s must be a positive integer, got %q", key, name, value))
}
