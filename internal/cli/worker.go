package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/jobq/pkg/logger"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

func newWorkerCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start queue workers",
		Long: "Start a pool of workers polling one logical queue. Each worker opens its own " +
			"store connection. SIGTERM and SIGQUIT stop the workers after their current job.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("config")
			name, _ := cmd.Flags().GetString("queue")
			maxJobs, _ := cmd.Flags().GetInt("max-jobs")
			maxRuntime, _ := cmd.Flags().GetDuration("max-runtime")
			workers, _ := cmd.Flags().GetInt("workers")
			withScheduler, _ := cmd.Flags().GetBool("scheduler")

			return runWorkers(cmd.Context(), app, workerRun{
				key:        key,
				queue:      name,
				maxJobs:    maxJobs,
				maxRuntime: maxRuntime,
				workers:    workers,
				scheduler:  withScheduler,
			})
		},
	}

	cmd.Flags().String("config", app.Config.DefaultConfig, "Queue config key")
	cmd.Flags().String("queue", queue.DefaultQueueName, "Logical queue to poll")
	cmd.Flags().Int("max-jobs", app.Config.MaxJobs, "Stop each worker after this many jobs (0 = unlimited)")
	cmd.Flags().Duration("max-runtime", app.Config.MaxRuntime, "Stop each worker after this long (0 = unlimited)")
	cmd.Flags().Int("workers", max(app.Config.Workers, 1), "Number of workers")
	cmd.Flags().Bool("scheduler", false, "Also plan the recurring messages of this config")
	return cmd
}

type workerRun struct {
	key        string
	queue      string
	maxJobs    int
	maxRuntime time.Duration
	workers    int
	scheduler  bool
}

func runWorkers(ctx context.Context, app *App, run workerRun) error {
	cfg, ok := app.Manager.Config(run.key)
	if !ok {
		return fmt.Errorf("%w: %q", queue.ErrConfigNotFound, run.key)
	}

	listeners, err := app.Manager.Listeners(run.key)
	if err != nil {
		return err
	}

	open := app.Manager.Opener(run.key)
	if cfg.Handler == "memory" {
		// an in-process store is only visible through its one instance
		q, err := app.Manager.Use(ctx, run.key)
		if err != nil {
			return err
		}
		open = queue.Shared(q)
	}

	log := app.logger()
	opts := append(app.Config.WorkerOptions(),
		queue.WithWorkerQueue(run.queue),
		queue.WithMaxJobs(run.maxJobs),
		queue.WithMaxRuntime(run.maxRuntime),
		queue.WithListeners(listeners...),
		queue.WithWorkerLogger(log),
	)

	pool, err := queue.NewPool(run.workers, open, app.Registry, opts...)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "starting workers",
		slog.String("config", run.key),
		logger.Queue(run.queue),
		slog.Int("workers", run.workers))

	if !run.scheduler {
		return pool.Run(ctx)
	}

	scheduler, err := newScheduler(ctx, app, run.key)
	if err != nil {
		return err
	}
	if len(scheduler.Entries()) == 0 {
		log.WarnContext(ctx, "no schedules for config, running workers only", slog.String("config", run.key))
		return pool.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	sctx, stopScheduler := context.WithCancel(gctx)
	g.Go(func() error {
		defer stopScheduler()
		return pool.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Run(sctx)
	})
	return g.Wait()
}

// newScheduler builds a scheduler for the registry schedules that belong to key.
func newScheduler(ctx context.Context, app *App, key string) (*queue.Scheduler, error) {
	q, err := app.Manager.Use(ctx, key)
	if err != nil {
		return nil, err
	}

	s, err := queue.NewScheduler(q, queue.WithSchedulerLogger(app.logger()))
	if err != nil {
		return nil, err
	}

	for _, sc := range app.Schedules {
		if sc.configKey(app) != key {
			continue
		}
		when, err := queue.ParseSchedule(sc.When)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		if err := s.Add(sc.Name, when, sc.Target, sc.Arguments, sc.messageOptions(key)...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (sc ScheduleConfig) configKey(app *App) string {
	if sc.Config != "" {
		return sc.Config
	}
	if app.Config.DefaultConfig != "" {
		return app.Config.DefaultConfig
	}
	return queue.DefaultConfigKey
}

func (sc ScheduleConfig) messageOptions(key string) []queue.MessageOption {
	return []queue.MessageOption{
		queue.WithConfig(key),
		queue.WithQueue(sc.Queue),
		queue.WithMethod(sc.Method),
	}
}
