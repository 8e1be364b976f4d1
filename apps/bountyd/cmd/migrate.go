package cmd

import (
	"context"
	"log"

	"github.com/lnbounty/bounty-api/pkg/api/config"
	"github.com/lnbounty/bounty-api/pkg/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies any pending database migrations and exits.`,
	Run:   migrate,
}

var migrateRollback bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "Rollback the last migration group instead of migrating")
}

func migrate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	if migrateRollback {
		if err := db.Rollback(ctx, database); err != nil {
			log.Fatalf("failed to rollback: %v", err)
		}
		return
	}

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
}
