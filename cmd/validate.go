package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/base/task-signing-tool/config"
	"github.com/base/task-signing-tool/internal/command"
	"github.com/base/task-signing-tool/internal/reconcile"
	"github.com/base/task-signing-tool/internal/report"
	"github.com/base/task-signing-tool/internal/state"
	"github.com/base/task-signing-tool/internal/task"
)

var (
	taskFile   string
	diffFile   string
	outputFile string
	scoped     bool
	workdir    string
)

var validateCmd = &cobra.Command{
	Use:   "validate [-- simulation command...]",
	Short: "Validate a simulated state diff against a task's expected changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadSpec()
		if err != nil {
			return err
		}

		rep, err := runValidation(cmd, spec, args)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding report: %w", err)
		}

		if outputFile != "" {
			if err := os.WriteFile(outputFile, encoded, 0o644); err != nil {
				return fmt.Errorf("error writing report: %w", err)
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		}

		logSummary(spec, rep)

		if rep.BlockingErrorsExist {
			// Non-zero exit is the gate callers script against.
			return fmt.Errorf("validation found blocking errors")
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&taskFile, "task", "c", "", "expected-state document (required)")
	validateCmd.Flags().StringVarP(&diffFile, "diff", "d", "", "state diff file written by the simulation (required)")
	validateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the report to a file instead of stdout")
	validateCmd.Flags().BoolVar(&scoped, "scoped", false, "drop diff records for contracts the task does not reference")
	validateCmd.Flags().StringVar(&workdir, "workdir", ".", "directory in which to run the simulation command")
	_ = validateCmd.MarkFlagRequired("task")
	_ = validateCmd.MarkFlagRequired("diff")
}

// loadSpec reads and fully parses the task's expected-state document.
func loadSpec() (*task.Spec, error) {
	doc, err := os.ReadFile(taskFile)
	if err != nil {
		return nil, fmt.Errorf("error reading task document: %w", err)
	}

	spec, err := task.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid task document %s:\n%w", taskFile, err)
	}
	return spec, nil
}

// runValidation is the pipeline shared by validate and sign: optionally run
// the simulation command, normalize the diff it produced, reconcile, and
// aggregate the report.
func runValidation(cmd *cobra.Command, spec *task.Spec, simArgs []string) (*report.Report, error) {
	if len(simArgs) > 0 {
		logger.Info().Str("command", simArgs[0]).Msg("running simulation")
		if _, err := command.Run(cmd.Context(), workdir, simArgs[0], simArgs[1:]...); err != nil {
			return nil, fmt.Errorf("error running simulation: %w", err)
		}
	}

	raw, err := command.ReadDiffFile(diffFile)
	if err != nil {
		return nil, err
	}

	var changes []state.Change
	if scoped {
		changes, err = state.NormalizeScoped(raw, spec.TrackedAddresses())
	} else {
		changes, err = state.Normalize(raw)
	}
	if err != nil {
		return nil, err
	}

	items := reconcile.Run(spec, changes)
	rep := report.Build(items)

	reg, err := config.Load()
	if err != nil {
		return nil, err
	}
	report.Annotate(rep, spec.ChainID, reg)

	return rep, nil
}

func logSummary(spec *task.Spec, rep *report.Report) {
	for _, entry := range rep.NavList {
		tally := rep.StepCounts.PerStep[entry.Step]
		event := logger.Info()
		if entry.FailedCount > 0 {
			event = logger.Error()
		}
		event.
			Str("step", entry.Label).
			Int("total", tally.Total).
			Int("passed", tally.Passed).
			Int("failed", tally.Failed).
			Bool("disabled", entry.Disabled).
			Msg("step summary")
	}

	logger.Info().
		Int("ledgerId", spec.LedgerID).
		Bool("blockingErrors", rep.BlockingErrorsExist).
		Msg("validation finished")
}
