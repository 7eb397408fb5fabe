package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/base/task-signing-tool/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <dir>",
	Short: "List task configs and their ledger account indexes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := filepath.Glob(filepath.Join(args[0], "*.json"))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no task configs found in %s", args[0])
		}

		for _, path := range paths {
			doc, err := os.ReadFile(path)
			if err != nil {
				logger.Warn().Err(err).Str("task", path).Msg("unreadable task config")
				continue
			}

			// Listing uses the best-effort ledger id so one broken document
			// does not hide the rest; the parse failure is still surfaced.
			if _, err := task.Parse(doc); err != nil {
				logger.Warn().Err(err).Str("task", path).Msg("task config fails full validation")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\tledgerId=%d\n", filepath.Base(path), task.LedgerID(doc))
		}
		return nil
	},
}
