// Package cli holds the cobra commands of the jobq binary.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobq/pkg/config"
	"github.com/dmitrymomot/jobq/pkg/queue"
)

// App is the shared state the commands operate on
type App struct {
	Manager   *queue.Manager
	Registry  *queue.Registry
	Config    queue.Config
	Schedules []ScheduleConfig
	Logger    *slog.Logger
}

// File is the layout of the queue registry file
type File struct {
	Queues    map[string]queue.QueueConfig `yaml:"queues"`
	Schedules []ScheduleConfig             `yaml:"schedules"`
}

// ScheduleConfig describes one recurring message in the registry file
type ScheduleConfig struct {
	Name      string          `yaml:"name"`
	When      string          `yaml:"when"`
	Target    string          `yaml:"target"`
	Method    string          `yaml:"method"`
	Config    string          `yaml:"config"`
	Queue     string          `yaml:"queue"`
	Arguments queue.Arguments `yaml:"args"`
}

// ErrNoQueues is returned when the registry file defines no queue configs
var ErrNoQueues = errors.New("registry file defines no queues")

// LoadFile reads the registry file at path and loads its queue configs into
// app. Schedules are validated here so that a typo fails at startup.
func LoadFile(app *App, path string) error {
	var f File
	if err := config.LoadYAML(path, &f); err != nil {
		return err
	}
	if len(f.Queues) == 0 {
		return fmt.Errorf("%w: %s", ErrNoQueues, path)
	}
	if err := app.Manager.LoadConfigs(f.Queues); err != nil {
		return err
	}
	for _, s := range f.Schedules {
		if _, err := queue.ParseSchedule(s.When); err != nil {
			return fmt.Errorf("schedule %q: %w", s.Name, err)
		}
	}
	app.Schedules = append(app.Schedules, f.Schedules...)
	return nil
}

// NewRootCommand builds the jobq command tree
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "jobq",
		Short:         "Background job queue CLI",
		Long:          "jobq runs queue workers and inspects the queues configured in the registry file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newWorkerCommand(app),
		newStatsCommand(app),
		newEnqueueCommand(app),
		newClearCommand(app),
		newResetCommand(app),
		newSchedulesCommand(app),
	)
	return root
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
