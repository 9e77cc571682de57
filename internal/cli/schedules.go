package cli

import (
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

func newSchedulesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List the recurring messages of the registry file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			printf(tw, "NAME\tWHEN\tTARGET\tCONFIG\tNEXT\n")
			for _, sc := range app.Schedules {
				next := "-"
				if when, err := queue.ParseSchedule(sc.When); err == nil {
					next = when.Next(now).Format(time.RFC3339)
				}
				printf(tw, "%s\t%s\t%s\t%s\t%s\n", sc.Name, sc.When, sc.Target, sc.configKey(app), next)
			}
			return tw.Flush()
		},
	}
}
