package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ats",
	Short: "An automated threshold trading system with a deterministic backtest engine",
	Long: `ats runs one trading loop per configured instrument, buying and selling
at fixed price offsets from the latest trade price.

The same loops run against a live broker adapter or against a historical
tick replay that records every simulated fill with fee-adjusted profit.`,
}

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}
