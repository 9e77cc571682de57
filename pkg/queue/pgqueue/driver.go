package pgqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/jobq/pkg/pg"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

// Handler is the name the driver is registered under in a queue.Manager.
const Handler = "postgres"

// Driver returns a queue.Driver that connects with base, overridden by the
// entry's URL. The entry prefix becomes the namespace. Recognised entry
// options:
//
//	migrate  "false" skips applying the schema
func Driver(base pg.Config, log *slog.Logger) queue.Driver {
	return func(ctx context.Context, key string, cfg queue.QueueConfig) (queue.Queue, error) {
		opts := []Option{WithNamespace(cfg.Prefix), WithLogger(log)}

		if v, ok := cfg.Options["migrate"]; ok {
			migrate, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Join(queue.ErrConfiguration, queue.ErrInvalidConfig,
					fmt.Errorf("queue config %q: option migrate must be a boolean, got %q", key, v))
			}
			if !migrate {
				opts = append(opts, WithoutMigrations())
			}
		}

		q, err := Connect(ctx, base.WithURL(cfg.URL), opts...)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
}
