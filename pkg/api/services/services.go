package services

import (
	"github.com/lnbounty/bounty-api/pkg/api/config"
	"github.com/lnbounty/bounty-api/pkg/api/services/authconfig"
	"github.com/lnbounty/bounty-api/pkg/api/services/escrow"
	"github.com/lnbounty/bounty-api/pkg/api/services/iam"
	"github.com/lnbounty/bounty-api/pkg/api/services/issues"
	"github.com/lnbounty/bounty-api/pkg/api/services/rewards"
	"github.com/lnbounty/bounty-api/pkg/api/services/users"
	"github.com/lnbounty/bounty-api/pkg/api/services/wallet"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/branta"
	"github.com/lnbounty/bounty-api/pkg/ghapi"
	"github.com/lnbounty/bounty-api/pkg/kv"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
	"github.com/uptrace/bun"
)

type Services struct {
	Auth    *authconfig.AuthService
	IAM     *iam.IAMService
	Users   *users.Service
	Wallet  *wallet.Service
	Rewards *rewards.Service
	Issues  *issues.Service

	// TrackerSecret authenticates the issue tracker's settlement calls.
	TrackerSecret string
}

func NewServices(cfg *config.EnvConfig, db *bun.DB, kvStore kv.Store, log *applog.Logger) (*Services, error) {
	gateway := lnbits.NewClient(lnbits.Config{BaseURL: cfg.LNbitsURL})
	bank := escrow.NewBank(gateway, log)

	brantaClient := branta.NewClient(branta.Config{
		BaseURL:  cfg.BrantaURL,
		APIKey:   cfg.BrantaAPIKey,
		Merchant: cfg.BrantaMerchant,
	})

	github := ghapi.NewClient(ghapi.Config{Token: cfg.GitHubAPIToken})

	userSvc := users.NewService(db)
	authSvc := authconfig.NewAuthService(cfg, userSvc, github, kvStore, log)

	return &Services{
		Auth:    authSvc,
		IAM:     iam.NewIAMService(authSvc, log),
		Users:   userSvc,
		Wallet:  wallet.NewService(db, bank, brantaClient, log),
		Rewards: rewards.NewService(db, bank, userSvc, github, kvStore, log),
		Issues:  issues.NewService(db),

		TrackerSecret: cfg.TrackerSecret,
	}, nil
}

// EmptyServices returns a container with no backends, used when only
// the OpenAPI document is needed.
func EmptyServices() *Services {
	return &Services{}
}
