// Package cmd wires the validation engine and its collaborators into the
// operator-facing CLI.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "task-signing-tool",
	Short: "Review and sign contract-upgrade transactions",
	Long: "task-signing-tool validates the state diff of a simulated contract-upgrade " +
		"transaction against the task's expected-state document, then hands the " +
		"EIP-712 domain and message hashes to a hardware wallet for signing.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
		})).Level(level).With().Timestamp().Logger()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(estimateCmd)
}

// Execute runs the CLI and exits non-zero on any error, including a
// validation run that found blocking errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
