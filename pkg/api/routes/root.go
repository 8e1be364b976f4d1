package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/lnbounty/bounty-api/pkg/api/services"
)

func RegisterAPI(api huma.API, svcs *services.Services) {
	RegisterIndex(api)
	RegisterHealth(api)

	if svcs == nil {
		svcs = services.EmptyServices()
	}

	RegisterAuthConfig(api, svcs.Auth)
	RegisterIAM(api, svcs.IAM)
	RegisterUsers(api, svcs.Users, svcs.IAM)
	RegisterWallet(api, svcs.Wallet, svcs.IAM)
	RegisterRewards(api, svcs.Rewards, svcs.IAM, svcs.TrackerSecret)
	RegisterIssues(api, svcs.Issues)
}
