package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/base/task-signing-tool/internal/gas"
)

var (
	rpcURL    string
	simLink   string
	bufferPct uint64
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate buffered L2 gas for the reviewed transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := gas.CallFromLink(simLink)
		if err != nil {
			return err
		}

		client, err := ethclient.DialContext(cmd.Context(), rpcURL)
		if err != nil {
			return fmt.Errorf("error connecting to %s: %w", rpcURL, err)
		}
		defer client.Close()

		estimate, err := gas.Estimate(cmd.Context(), client, msg, bufferPct)
		if err != nil {
			return err
		}

		logger.Debug().Uint64("buffered", estimate).Uint64("bufferPct", bufferPct).Msg("gas estimated")
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", estimate)
		return nil
	},
}

func init() {
	estimateCmd.Flags().StringVar(&rpcURL, "rpc", "", "RPC URL to estimate against (required)")
	estimateCmd.Flags().StringVar(&simLink, "link", "", "simulation link holding the call parameters (required)")
	estimateCmd.Flags().Uint64Var(&bufferPct, "buffer", 20, "percentage buffer added to the estimate")
	_ = estimateCmd.MarkFlagRequired("rpc")
	_ = estimateCmd.MarkFlagRequired("link")
}
