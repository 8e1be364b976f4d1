package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/lnbounty/bounty-api/pkg/api/utils"
)

type EnvConfig struct {
	Port        string `envconfig:"PORT" default:"3000"`
	BaseURL     string `envconfig:"BASE_URL" required:"true"`
	AuthSecret  string `envconfig:"AUTH_SECRET" required:"true"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubAPIToken     string `envconfig:"GITHUB_API_TOKEN"`

	// Comma-separated list of origins allowed as OAuth redirect targets.
	AllowedRedirects string `envconfig:"ALLOWED_REDIRECTS"`

	AccessTokenTTL  int `envconfig:"ACCESS_TOKEN_TTL" default:"3600"`
	RefreshTokenTTL int `envconfig:"REFRESH_TOKEN_TTL" default:"2592000"` // 30 days

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"bounty"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"password"`
	DBName     string `envconfig:"DB_NAME" default:"bounty"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	ValkeyAddr     string `envconfig:"VALKEY_ADDR" default:"localhost:6379"`
	ValkeyPassword string `envconfig:"VALKEY_PASSWORD"`
	ValkeyDB       int    `envconfig:"VALKEY_DB" default:"0"`

	LNbitsURL      string `envconfig:"LNBITS_URL" required:"true"`
	BrantaURL      string `envconfig:"BRANTA_URL"`
	BrantaAPIKey   string `envconfig:"BRANTA_API_KEY"`
	BrantaMerchant string `envconfig:"BRANTA_MERCHANT" default:"Lightning Bounties"`

	// Shared secret presented by the issue tracker when it reports a
	// merged pull request for settlement.
	TrackerSecret string `envconfig:"TRACKER_SECRET"`
}

func ValidateEnv() (*EnvConfig, error) {
	if utils.IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errors []string

	if len(cfg.AuthSecret) < 32 {
		errors = append(errors, "  ❌ AUTH_SECRET must be at least 32 characters")
	}

	if (cfg.GitHubClientID != "" && cfg.GitHubClientSecret == "") || (cfg.GitHubClientID == "" && cfg.GitHubClientSecret != "") {
		errors = append(errors, "  ❌ Both GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		errors = append(errors, "  ❌ BASE_URL must be a valid URL")
	}

	if _, err := url.ParseRequestURI(cfg.LNbitsURL); err != nil {
		errors = append(errors, "  ❌ LNBITS_URL must be a valid URL")
	}

	if (cfg.BrantaURL != "" && cfg.BrantaAPIKey == "") || (cfg.BrantaURL == "" && cfg.BrantaAPIKey != "") {
		errors = append(errors, "  ❌ Both BRANTA_URL and BRANTA_API_KEY must be set together")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return &cfg, nil
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Base URL: %s\n", c.BaseURL)
	fmtr("  Auth Secret: %s\n", MaskSecret(c.AuthSecret))
	fmtr("  Database: %s@%s:%d/%s (sslmode=%s)\n", c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
	fmtr("  Valkey: %s (db=%d)\n", c.ValkeyAddr, c.ValkeyDB)
	fmtr("  LNbits: %s\n", c.LNbitsURL)
	fmtr("  Refresh TTL: %ds\n", c.RefreshTokenTTL)

	if c.GitHubClientID != "" {
		fmtr("  GitHub OAuth: ✓ Enabled\n")
		fmtr("    Client ID: %s\n", MaskSecret(c.GitHubClientID))
		fmtr("    Client Secret: %s\n", MaskSecret(c.GitHubClientSecret))
	} else {
		fmtr("  GitHub OAuth: ✗ Disabled\n")
	}

	if c.BrantaURL != "" {
		fmtr("  Branta: ✓ Enabled (%s)\n", c.BrantaURL)
	} else {
		fmtr("  Branta: ✗ Disabled\n")
	}

	if c.TrackerSecret != "" {
		fmtr("  Tracker Secret: %s\n", MaskSecret(c.TrackerSecret))
	} else {
		fmtr("  Tracker Secret: <not set>\n")
	}
}
