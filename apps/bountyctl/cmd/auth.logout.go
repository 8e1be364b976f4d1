package cmd

import (
	"fmt"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials for the configured bounty API",
	Run: func(cmd *cobra.Command, args []string) {
		baseURL := viper.GetString(bsdk.BaseUrlKey)
		_ = bsdk.DeleteToken(baseURL)
		_ = bsdk.DeleteRefreshToken(baseURL)
		fmt.Println("Logged out")
	},
}

func init() {
	authCmd.AddCommand(logoutCmd)
}
