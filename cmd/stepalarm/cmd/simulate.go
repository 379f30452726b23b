package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/step-alarm/internal/service/simulate"
)

var (
	// simulateTarget overrides the script target.
	simulateTarget uint64

	// simulateCmd replays a recorded script.
	simulateCmd = &cobra.Command{
		Use:   "simulate <script.yaml>",
		Short: "Replay recorded motion samples through step detection.",
		Long: `Replays a YAML script of motion samples through a fresh detection engine
and alarm controller, printing each accepted step and whether the target was
reached. No daemon or sensor is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, err := simulate.Run(ctx, &simulate.Options{
				ScriptPath:  args[0],
				TargetSteps: simulateTarget,
				Out:         cmd.OutOrStdout(),
			})

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	simulateCmd.Flags().Uint64VarP(&simulateTarget, "steps", "n", 0, "override the target from the script")

	rootCmd.AddCommand(simulateCmd)
}
