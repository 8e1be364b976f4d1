package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bountyd",
	Short: "Bounty API server",
	Long:  `bountyd serves the GitHub issue bounty API: escrowed pledges, wallets and winner settlement.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
