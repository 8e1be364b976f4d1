package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication with the bounty API (login, logout)",
	Long: `Manage authentication against a running bounty API.

Subcommands will let you obtain tokens (login) and invalidate them (logout).
Tokens are stored in the OS keyring for use by other bountyctl commands.

Examples:
  bountyctl auth login
  bountyctl auth logout`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("auth called")
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
