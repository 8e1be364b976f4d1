package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
)

var (
	issuesRepo string
	issuesOpen bool
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List bounty issues and their pledged totals",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		list, status, err := sdk.Client.ListIssues(context.Background(), bsdk.IssueListOptions{
			Repo:     issuesRepo,
			OnlyOpen: issuesOpen,
		})
		if err != nil {
			exitIfSdkError(err)
		}
		if status >= 300 {
			log.Fatalf("unexpected response: status=%d", status)
		}

		if len(list) == 0 {
			fmt.Println("No bounty issues found")
			return
		}
		for _, issue := range list {
			state := "open"
			if issue.IsClosed {
				state = "paid"
			}
			title := issue.Title
			if len(title) > 60 {
				title = title[:57] + "..."
			}
			fmt.Printf("%-8s %8d sats  %s#%d  %s\n", state, issue.PledgedSats, issue.RepoFullName, issue.IssueNumber, title)
		}
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue <issue-id>",
	Short: "Show one bounty issue in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		issue, status, err := sdk.Client.GetIssue(context.Background(), args[0])
		if err != nil {
			exitIfSdkError(err)
		}
		if status == 404 {
			log.Fatalf("issue not found")
		}
		if issue == nil {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("%s#%d  %s\n", issue.RepoFullName, issue.IssueNumber, issue.Title)
		fmt.Printf("URL: %s\n", issue.HTMLURL)
		fmt.Printf("Pledged: %d sats\n", issue.PledgedSats)
		if issue.IsClosed {
			fmt.Printf("Paid to %s at %s\n", issue.WinnerID, issue.ClaimedAt)
		} else {
			fmt.Println("Still claimable")
		}
		if len(issue.Rewarders) > 0 {
			fmt.Printf("Recent pledgers: %s\n", strings.Join(issue.Rewarders, ", "))
		}
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories with tracked bounty issues",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		repos, status, err := sdk.Client.ListRepositories(context.Background(), 0, 0)
		if err != nil {
			exitIfSdkError(err)
		}
		if status >= 300 {
			log.Fatalf("unexpected response: status=%d", status)
		}

		for _, repo := range repos {
			fmt.Printf("%-40s  %3d open  %s\n", repo.FullName, repo.OpenIssues, repo.HTMLURL)
		}
	},
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(reposCmd)

	issuesCmd.Flags().StringVar(&issuesRepo, "repo", "", "Filter by repository full name (owner/name)")
	issuesCmd.Flags().BoolVar(&issuesOpen, "open", false, "Only issues still claimable")
}
