package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show information about the current authenticated user",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		user, status, err := sdk.Client.Me(context.Background())
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}
		if user == nil {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("Logged in: @%s\n", user.Login)
		fmt.Printf("GitHub ID: %s\n", user.GithubID)
		fmt.Printf("ID: %s\n", user.ID)
	},
}

func init() {
	rootCmd.AddCommand(meCmd)
}
