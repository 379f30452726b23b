package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/step-alarm/internal/config"
	"github.com/oshokin/step-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the daemon address from the configuration.
	serverAddress string

	// rootCmd represents the base command when called without subcommands.
	rootCmd = &cobra.Command{
		Use:   "stepalarm",
		Short: "Alarm that only stops after you walk.",
		Long: `Runs and controls a step-gated alarm.

When an alarm fires, the daemon arms step detection on the best motion
sensor available and keeps the alarm active until the configured number of
steps has been walked. Hardware step detectors are preferred, followed by
cumulative step counters, then accelerometer and gyroscope fallbacks.

Use "serve" on the device that reads the sensors, and "trigger", "stop" and
"status" from anywhere that can reach it.`,
		SilenceUsage: true,
	}
)

// Execute runs the stepalarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "daemon address, overrides server_addr from the configuration")
}
