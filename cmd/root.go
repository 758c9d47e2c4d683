package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyarb",
	Short: "Prediction market arbitrage detection engine",
	Long: `polyarb subscribes to newly listed binary and multi-outcome
prediction markets, detects single-market, rebalancing, and
cross-market combinatorial arbitrage, and executes or simulates the
resulting baskets.

It polls the Gamma API for new markets, streams their order books over
WebSocket, and evaluates every registered strategy plus cluster-driven
combinatorial detection on live book state.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}
