package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/base/task-signing-tool/internal/command"
	"github.com/base/task-signing-tool/internal/signer"
)

var (
	privateKey string
	mnemonic   string
	hdPath     string
	ledger     bool
	prefix     string
	suffix     string
	skipSender bool
)

var signCmd = &cobra.Command{
	Use:   "sign -- simulation command...",
	Short: "Validate, then sign the reviewed transaction's EIP-712 hashes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := loadSpec()
		if err != nil {
			return err
		}

		// Signer creation doubles as the hardware availability check; do it
		// before spending time on the simulation.
		s, err := signer.New(signer.Options{
			PrivateKey:   privateKey,
			Mnemonic:     mnemonic,
			HDPath:       hdPath,
			Ledger:       ledger,
			AccountIndex: spec.LedgerID,
		})
		if err != nil {
			return err
		}
		logger.Info().Str("signer", s.Address().String()).Int("ledgerId", spec.LedgerID).Msg("signer ready")

		simArgs := args
		if !skipSender {
			simArgs = command.InjectSender(simArgs, s.Address())
		}

		logger.Info().Str("command", simArgs[0]).Msg("running simulation")
		output, err := command.Run(cmd.Context(), workdir, simArgs[0], simArgs[1:]...)
		if err != nil {
			return fmt.Errorf("error running simulation: %w", err)
		}

		rep, err := runValidation(cmd, spec, nil)
		if err != nil {
			return err
		}
		logSummary(spec, rep)

		if rep.BlockingErrorsExist {
			// Never request a signature over a diff that failed review.
			return fmt.Errorf("refusing to sign: validation found blocking errors")
		}

		signable, err := command.ExtractSignable(output, prefix, suffix)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Domain hash: %s\n", signable.DomainHash())
		fmt.Fprintf(cmd.OutOrStdout(), "Message hash: %s\n", signable.MessageHash())

		if link, ok := command.ExtractTenderlyLink(output); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Tenderly link: %s\n", link)
		}

		signature, err := s.Sign(signable.Raw())
		if err != nil {
			return fmt.Errorf("error signing: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Signer: %s\n", s.Address().String())
		fmt.Fprintf(cmd.OutOrStdout(), "Signature: %s\n", hex.EncodeToString(signature))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVarP(&taskFile, "task", "c", "", "expected-state document (required)")
	signCmd.Flags().StringVarP(&diffFile, "diff", "d", "", "state diff file written by the simulation (required)")
	signCmd.Flags().BoolVar(&scoped, "scoped", false, "drop diff records for contracts the task does not reference")
	signCmd.Flags().StringVar(&workdir, "workdir", ".", "directory in which to run the simulation command")
	signCmd.Flags().StringVar(&privateKey, "private-key", "", "private key to sign with")
	signCmd.Flags().StringVar(&mnemonic, "mnemonic", "", "mnemonic to sign with")
	signCmd.Flags().StringVar(&hdPath, "hd-path", "", "derivation path override (defaults to the task's ledger account index)")
	signCmd.Flags().BoolVar(&ledger, "ledger", false, "sign with a Ledger device")
	signCmd.Flags().StringVar(&prefix, "prefix", "vvvvvvvv", "string that prefixes the data to be signed")
	signCmd.Flags().StringVar(&suffix, "suffix", "^^^^^^^^", "string that suffixes the data to be signed")
	signCmd.Flags().BoolVar(&skipSender, "skip-sender", false, "skip adding --sender to forge script commands")
	_ = signCmd.MarkFlagRequired("task")
	_ = signCmd.MarkFlagRequired("diff")
}
