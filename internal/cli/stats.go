package cli

import (
	"context"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

func newStatsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Display stats for the configured queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, _ := cmd.Flags().GetString("config")
			name, _ := cmd.Flags().GetString("queue")
			return printStats(cmd.Context(), app, cmd.OutOrStdout(), key, name)
		},
	}
	cmd.Flags().String("config", "", "Only this config key")
	cmd.Flags().String("queue", "", "Only this logical queue")
	return cmd
}

// printStats writes one table per config key and active queue.
func printStats(ctx context.Context, app *App, out io.Writer, onlyKey, onlyQueue string) error {
	for _, key := range app.Manager.Configs() {
		if onlyKey != "" && key != onlyKey {
			continue
		}

		q, err := app.Manager.Use(ctx, key)
		if err != nil {
			return err
		}
		names, err := q.Queues(ctx)
		if err != nil {
			return err
		}

		printf(out, "%s\n", key)
		for _, name := range names {
			if onlyQueue != "" && name != onlyQueue {
				continue
			}
			stats, err := q.Stats(ctx, name)
			if err != nil {
				return err
			}
			printf(out, "  %s\n", name)
			if err := writeStats(out, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStats(out io.Writer, s queue.Stats) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := []struct {
		name  string
		value int64
	}{
		{"queued", s.Queued},
		{"delayed", s.Delayed},
		{"completed", s.Completed},
		{"failed", s.Failed},
		{"total", s.Total},
	}
	for _, r := range rows {
		printf(tw, "    %s\t%d\n", r.name, r.value)
	}
	return tw.Flush()
}
