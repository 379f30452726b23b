package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/step-alarm/internal/service/client"
)

var (
	// targetSteps is the trigger target; zero uses the daemon default.
	targetSteps uint64
	// alarmID identifies the alarm on trigger.
	alarmID string
	// follow keeps status polling until the session ends.
	follow bool
	// pollInterval is the status polling period.
	pollInterval time.Duration

	// triggerCmd starts a session.
	triggerCmd = &cobra.Command{
		Use:   "trigger",
		Short: "Fire the alarm and start counting steps.",
		Long: `Asks the daemon to start an alarm session.

While a session is active further triggers are ignored and reported as duplicate.
Without --steps the daemon uses default_target_steps from its configuration.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Trigger(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				TargetSteps:   targetSteps,
				AlarmID:       alarmID,
			})
		},
	}

	// stopCmd ends the active session.
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the active alarm without walking.",
		Long:  "Ends the active session immediately. The session is recorded as stopped together with the user and host that sent the request.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Stop(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
			})
		},
	}

	// statusCmd prints progress.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the alarm state and step progress.",
		Long:  "Prints the controller state, the selected detection strategy and the steps taken and remaining. With --follow it keeps printing until the session ends.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Status(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Follow:        follow,
				PollInterval:  pollInterval,
				Out:           cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	triggerCmd.Flags().Uint64VarP(&targetSteps, "steps", "n", 0, "steps required to stop the alarm")
	triggerCmd.Flags().StringVar(&alarmID, "alarm-id", "manual", "identifier of the alarm that fired")

	statusCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling until the session ends")
	statusCmd.Flags().DurationVar(&pollInterval, "interval", client.DefaultPollInterval, "polling interval with --follow")

	rootCmd.AddCommand(triggerCmd, stopCmd, statusCmd)
}
