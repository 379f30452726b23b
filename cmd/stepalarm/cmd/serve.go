package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/step-alarm/internal/service/daemon"
)

var (
	// historyFile overrides the session history path.
	historyFile string
	// watchConfig enables settings hot-reload.
	watchConfig bool

	// serveCmd runs the daemon.
	serveCmd = &cobra.Command{
		Use:   "serve [listen-address]",
		Short: "Run the step alarm daemon.",
		Long: `Starts the daemon that owns the sensors, counts steps and serves the control API.

Only the port from server_addr is used for listening (e.g., :50051) unless a
listen address is given as argument. Finished sessions are appended to the
history file. With --watch, detection tunables and the default target are
reloaded when the configuration file changes and apply to the next alarm.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signalContext()
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HistoryFile:   historyFile,
				WatchConfig:   watchConfig,
			}

			return daemon.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	serveCmd.Flags().StringVar(&historyFile, "history-file", "", "path to the session history file")
	serveCmd.Flags().BoolVarP(&watchConfig, "watch", "w", false, "reload detection settings when the configuration changes")

	rootCmd.AddCommand(serveCmd)
}
