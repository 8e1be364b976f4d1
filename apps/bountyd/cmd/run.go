package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/lnbounty/bounty-api/pkg/api"
	"github.com/lnbounty/bounty-api/pkg/api/config"
	"github.com/lnbounty/bounty-api/pkg/api/routes"
	"github.com/lnbounty/bounty-api/pkg/api/services"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/db"
	"github.com/lnbounty/bounty-api/pkg/kv"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the API server",
	Long:  `Starts the HTTP server after connecting to the database and the key-value store.`,
	Run:   run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	cfg, err := config.ValidateEnv()
	if err != nil {
		log.Fatalf("❌ %v\n", err)
	}

	cfg.Print(log.Printf)

	logger := applog.NewDefault()

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

	kvStore, err := kv.NewValkeyStore(kv.ValkeyConfig{
		Addr:     cfg.ValkeyAddr,
		Password: cfg.ValkeyPassword,
		DB:       cfg.ValkeyDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to valkey: %v", err)
	}
	defer kvStore.Close()

	svcs, err := services.NewServices(cfg, database, kvStore, logger)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}

	a := api.NewApi()
	a.Api.UseMiddleware(svcs.IAM.Middleware())
	routes.RegisterAPI(a.Api, svcs)

	addr := fmt.Sprintf(":%s", cfg.Port)

	log.Printf("🚀 Bounty API starting on %s\n", addr)
	log.Printf("📚 OpenAPI docs: %s/docs\n", cfg.BaseURL)
	log.Printf("📄 OpenAPI spec: %s/openapi.json\n", cfg.BaseURL)
	log.Printf("🔐 Authorize: %s/api/auth/login\n", cfg.BaseURL)

	if err := http.ListenAndServe(addr, a.Router); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
