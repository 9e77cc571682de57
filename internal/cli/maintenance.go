package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

func newClearCommand(app *App) *cobra.Command {
	return newMaintenanceCommand(app, "clear",
		"Drop every ready, delayed and unique entry of a queue. Counters are kept.",
		func(ctx context.Context, q queue.Queue, name string) error { return q.Clear(ctx, name) })
}

func newResetCommand(app *App) *cobra.Command {
	return newMaintenanceCommand(app, "reset",
		"Zero the completed, failed and total counters of a queue. Messages are kept.",
		func(ctx context.Context, q queue.Queue, name string) error { return q.Reset(ctx, name) })
}

func newMaintenanceCommand(app *App, use, long string, apply func(context.Context, queue.Queue, string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Run %s on one or all queues of a config", use),
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, _ := cmd.Flags().GetString("config")
			name, _ := cmd.Flags().GetString("queue")
			all, _ := cmd.Flags().GetBool("all")

			q, err := app.Manager.Use(ctx, key)
			if err != nil {
				return err
			}

			names := []string{name}
			if all {
				if names, err = q.Queues(ctx); err != nil {
					return err
				}
			}

			for _, n := range names {
				if err := apply(ctx, q, n); err != nil {
					return fmt.Errorf("failed to %s queue %q: %w", use, n, err)
				}
				printf(cmd.OutOrStdout(), "%s: %s/%s\n", use, key, n)
			}
			return nil
		},
	}
	cmd.Flags().String("config", app.Config.DefaultConfig, "Queue config key")
	cmd.Flags().String("queue", queue.DefaultQueueName, "Logical queue")
	cmd.Flags().Bool("all", false, "Apply to every active queue of the config")
	return cmd
}
