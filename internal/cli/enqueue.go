package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/jobq/pkg/queue"
)

// ErrInvalidArgument is returned for a malformed --arg or --args value
var ErrInvalidArgument = errors.New("invalid job argument")

func newEnqueueCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <target>",
		Short: "Push a message for target",
		Long: "Push a message for target. Arguments come from --args (a JSON object) and " +
			"repeated --arg key=value flags; a value that parses as JSON keeps its type, " +
			"anything else is a string.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			method, _ := flags.GetString("method")
			key, _ := flags.GetString("config")
			name, _ := flags.GetString("queue")
			delay, _ := flags.GetDuration("delay")
			expires, _ := flags.GetDuration("expires")
			unique, _ := flags.GetBool("unique")
			noRetry, _ := flags.GetBool("no-retry")
			maxRetries, _ := flags.GetInt("max-retries")
			rawJSON, _ := flags.GetString("args")
			pairs, _ := flags.GetStringArray("arg")

			jobArgs, err := parseArguments(rawJSON, pairs)
			if err != nil {
				return err
			}

			opts := []queue.MessageOption{
				queue.WithMethod(method),
				queue.WithConfig(key),
				queue.WithQueue(name),
				queue.WithRetry(!noRetry),
				queue.WithMaxRetries(maxRetries),
				queue.WithUnique(unique),
			}
			if delay != 0 {
				opts = append(opts, queue.WithDelay(delay))
			}
			if expires != 0 {
				opts = append(opts, queue.WithExpires(expires))
			}

			ok, err := app.Manager.Enqueue(cmd.Context(), args[0], jobArgs, opts...)
			if err != nil {
				return err
			}
			if !ok {
				printf(cmd.OutOrStdout(), "skipped: message is expired or a duplicate\n")
				return nil
			}
			printf(cmd.OutOrStdout(), "enqueued %s\n", args[0])
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("method", queue.DefaultMethod, "Target method")
	flags.String("config", app.Config.DefaultConfig, "Queue config key")
	flags.String("queue", queue.DefaultQueueName, "Logical queue")
	flags.Duration("delay", 0, "Run no earlier than this from now")
	flags.Duration("expires", 0, "Drop the message if it has not run within this long")
	flags.Bool("unique", false, "Skip if an identical message is already queued")
	flags.Bool("no-retry", false, "Never retry a failed run")
	flags.Int("max-retries", queue.DefaultMaxRetries, "Maximum number of runs")
	flags.String("args", "", "Arguments as a JSON object")
	flags.StringArray("arg", nil, "Argument as key=value, repeatable")
	return cmd
}

func parseArguments(rawJSON string, pairs []string) (queue.Arguments, error) {
	args := queue.Arguments{}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &args); err != nil {
			return nil, errors.Join(ErrInvalidArgument, err)
		}
	}

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrInvalidArgument, pair)
		}
		var value any
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			value = v
		}
		args[k] = value
	}
	return args, nil
}
