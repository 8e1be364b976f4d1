package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
)

var rewardAmount int64

var rewardCmd = &cobra.Command{
	Use:   "reward <github-issue-url>",
	Short: "Pledge sats to a GitHub issue",
	Long: `Pledge sats from your wallet into the escrow for a GitHub issue.

The issue is registered on first pledge. Whoever closes it with a merged
pull request receives the whole escrow balance.

Examples:
  bountyctl reward https://github.com/owner/repo/issues/42 --amount 500`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if rewardAmount <= 0 {
			log.Fatalf("--amount must be a positive number of sats")
		}

		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		reward, status, err := sdk.Client.CreateReward(context.Background(), args[0], rewardAmount)
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}
		switch status {
		case http.StatusPaymentRequired:
			log.Fatalf("insufficient funds: deposit sats first with 'bountyctl wallet deposit'")
		case http.StatusConflict:
			log.Fatalf("issue is already paid out")
		case http.StatusNotFound:
			log.Fatalf("issue not found on GitHub")
		}
		if reward == nil {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("Pledged %d sats (reward %s)\n", reward.AmountSats, reward.ID)
	},
}

var (
	totalRepo  string
	totalIssue int
)

var totalCmd = &cobra.Command{
	Use:   "total",
	Short: "Show the pledged total, optionally filtered by repository or issue",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		total, status, err := sdk.Client.TotalRewards(context.Background(), totalRepo, totalIssue)
		if err != nil {
			exitIfSdkError(err)
		}
		if status >= 300 {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("Total pledged: %d sats\n", total)
	},
}

func init() {
	rootCmd.AddCommand(rewardCmd)
	rootCmd.AddCommand(totalCmd)

	rewardCmd.Flags().Int64Var(&rewardAmount, "amount", 0, "Pledge amount in sats")
	totalCmd.Flags().StringVar(&totalRepo, "repo", "", "Filter by repository full name (owner/name)")
	totalCmd.Flags().IntVar(&totalIssue, "issue", 0, "Filter by issue number (requires --repo)")
}
