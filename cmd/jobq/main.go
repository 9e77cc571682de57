package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dmitrymomot/jobq/internal/cli"
	"github.com/dmitrymomot/jobq/pkg/broadcast"
	"github.com/dmitrymomot/jobq/pkg/config"
	"github.com/dmitrymomot/jobq/pkg/logger"
	"github.com/dmitrymomot/jobq/pkg/pg"
	"github.com/dmitrymomot/jobq/pkg/queue"
	"github.com/dmitrymomot/jobq/pkg/queue/pgqueue"
	"github.com/dmitrymomot/jobq/pkg/queue/redisqueue"
	"github.com/dmitrymomot/jobq/pkg/redis"
)

type logConfig struct {
	Env     string `env:"APP_ENV" envDefault:"production"`
	Level   string `env:"LOG_LEVEL"`
	Format  string `env:"LOG_FORMAT"`
	Service string `env:"SERVICE_NAME" envDefault:"jobq"`
}

func main() {
	// SIGTERM and SIGQUIT are left to the workers, which finish their job first.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "jobq:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		logCfg   logConfig
		queueCfg queue.Config
		redisCfg redis.Config
		pgCfg    pg.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&logCfg) },
		func() error { return config.Load(&queueCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&pgCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	log, err := newLogger(logCfg)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	events := broadcast.NewMemoryBroadcaster[queue.Event](256)
	tally := cli.NewTally(ctx, events)

	m := queue.NewManager(
		queue.WithManagerLogger(log),
		queue.WithDriver(redisqueue.Handler, redisqueue.Driver(redisCfg, log)),
		queue.WithDriver(pgqueue.Handler, pgqueue.Driver(pgCfg, log)),
		queue.WithNamedListener("log", queue.NewLogListener(log)),
		queue.WithNamedListener("events", queue.NewBroadcastListener(events)),
	)
	defer func() {
		if err := m.Close(); err != nil {
			log.Error("failed to close queues", logger.Error(err))
		}
	}()

	app := &cli.App{
		Manager:  m,
		Registry: builtinTargets(log),
		Config:   queueCfg,
		Logger:   log,
	}
	if err := cli.LoadFile(app, queueCfg.ConfigFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", queueCfg.ConfigFile, err)
	}

	err = cli.NewRootCommand(app).ExecuteContext(ctx)

	_ = events.Close()
	tally.Wait()
	tally.Log(ctx, log)
	return err
}

func newLogger(cfg logConfig) (*slog.Logger, error) {
	opts := []logger.Option{logger.WithProduction(cfg.Service)}
	if cfg.Env == "development" {
		opts = []logger.Option{logger.WithDevelopment(cfg.Service)}
	}

	if cfg.Level != "" {
		level, err := logger.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logger.WithLevel(level))
	}
	if cfg.Format != "" {
		format := logger.Format(cfg.Format)
		if format != logger.FormatJSON && format != logger.FormatText {
			return nil, fmt.Errorf("unknown log format %q", cfg.Format)
		}
		opts = append(opts, logger.WithFormat(format))
	}

	return logger.New(append(opts, logger.WithOutput(os.Stderr))...), nil
}

// builtinTargets registers the jobs shipped with the binary. "log" writes its
// arguments, which makes it handy for checking a deployment end to end.
func builtinTargets(log *slog.Logger) *queue.Registry {
	reg := queue.NewRegistry()
	_ = reg.Register("log", queue.DefaultMethod, func(ctx context.Context, args queue.Arguments) error {
		attrs := make([]any, 0, len(args))
		for k, v := range args {
			attrs = append(attrs, slog.Any(k, v))
		}
		log.InfoContext(ctx, "log job", slog.Group("args", attrs...))
		return nil
	})
	return reg
}
