package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect and operate your custodial lightning wallet",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		w, status, err := sdk.Client.Wallet(context.Background())
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}
		if w == nil {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("Balance: %d sats\n", w.TotalSats)
	},
}

var depositAmount int64

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Create a deposit invoice that credits your wallet once paid",
	Run: func(cmd *cobra.Command, args []string) {
		if depositAmount <= 0 {
			log.Fatalf("--amount must be a positive number of sats")
		}

		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		invoice, status, err := sdk.Client.CreateDepositInvoice(context.Background(), depositAmount)
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}
		if invoice == nil {
			log.Fatalf("unexpected response: status=%d", status)
		}

		fmt.Printf("Pay this invoice to deposit %d sats:\n%s\n", depositAmount, invoice.PaymentRequest)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <bolt11>",
	Short: "Pay an external invoice from your wallet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		status, err := sdk.Client.Withdraw(context.Background(), args[0])
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}
		switch status {
		case http.StatusPaymentRequired:
			log.Fatalf("insufficient funds")
		case http.StatusConflict:
			log.Fatalf("invoice is already paid")
		}
		if status >= 300 {
			log.Fatalf("withdrawal failed: status=%d", status)
		}

		fmt.Println("Invoice paid")
	},
}

var (
	historyOffset int
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your wallet payment history",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := bsdk.NewSdk()
		if err != nil {
			exitIfSdkError(err)
		}

		txs, status, err := sdk.Client.WalletHistory(context.Background(), historyOffset, historyLimit)
		if err != nil {
			exitIfSdkError(err)
		}
		if sdk.HandleUnauthorized(status) {
			log.Fatalf("unauthorized (401). Please run 'bountyctl auth login' to re-authenticate")
		}

		if len(txs) == 0 {
			fmt.Println("No transactions")
			return
		}
		for _, tx := range txs {
			state := "settled"
			if tx.Pending {
				state = "pending"
			}
			fmt.Printf("%+d sats  %-8s %s\n", tx.AmountSats, state, tx.Memo)
		}
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(depositCmd)
	walletCmd.AddCommand(withdrawCmd)
	walletCmd.AddCommand(historyCmd)

	depositCmd.Flags().Int64Var(&depositAmount, "amount", 0, "Deposit amount in sats")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Number of entries to skip")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Page size")
}
