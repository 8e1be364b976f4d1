package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/lnbounty/bounty-api/pkg/bauth"
	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to the bounty API",
	Long: `Start an interactive login flow to authenticate with the bounty API.

Examples:
	# start the interactive browser-based login
	bountyctl auth login

Credentials will be stored in the OS keyring for subsequent commands.`,
	Run: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) {
	auth := bsdk.NewAuthClient(nil)
	loginUrl, err := auth.InitiateLoginWithGithub()
	if err != nil {
		log.Fatalf("failed to initiate login: %v", err)
		return
	}
	fmt.Printf("Please open the following URL in your browser to complete login:\n%s\n", loginUrl)

	result, err := auth.CompleteLoginInteractive()
	if err != nil {
		log.Fatalf("failed to complete login: %v", err)
		return
	}

	if uc, err := bauth.FromToken(result.Token); err == nil {
		expStr := "unknown"
		if uc.Exp > 0 {
			expStr = time.Unix(uc.Exp, 0).Format(time.RFC3339)
		}
		fmt.Printf("Logged in as: @%s\n", uc.Login)
		fmt.Printf("Token expires: %s\n", expStr)
	} else {
		log.Printf("warning: failed to parse token claims: %v", err)
	}

	baseURL := viper.GetString(bsdk.BaseUrlKey)
	if err := bsdk.SaveTokens(baseURL, result.Token, result.RefreshToken); err != nil {
		log.Printf("warning: failed to save tokens to keyring: %v", err)
	} else {
		fmt.Println("Access token saved")
	}
}

func init() {
	authCmd.AddCommand(loginCmd)
}
