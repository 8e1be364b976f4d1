package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/lnbounty/bounty-api/pkg/bsdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type contextKey string

const configContextKey contextKey = "bountyconfig"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "bountyctl",
		Short: "CLI for interacting with the bounty API (auth, wallet, issues, rewards)",
		Long: `bountyctl is a small command-line tool for interacting with a running
bounty API. It provides subcommands to authenticate, inspect your wallet,
browse bounty issues, and pledge sats to them. Use the auth subcommands to
obtain and manage tokens; use wallet to deposit and withdraw; and use
issues and rewards to browse and fund bounties.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bsdk.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			if err := cfg.Viper().BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			// The SDK reads the global viper, so mirror the resolved base URL
			// there for commands that construct clients directly.
			viper.Set(bsdk.BaseUrlKey, cfg.GetString(bsdk.BaseUrlKey))

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// GetConfig retrieves the Config from the command context
func GetConfig(cmd *cobra.Command) (*bsdk.Config, error) {
	ctx := cmd.Context()
	cfg, ok := ctx.Value(configContextKey).(*bsdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML). Searches: bounty.yaml, .bounty/config.yaml")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL for the bounty API (overrides config)")
}
