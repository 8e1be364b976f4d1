package iam

import (
	"github.com/lnbounty/bounty-api/pkg/api/services/authconfig"
	"github.com/lnbounty/bounty-api/pkg/applog"
)

type IAMService struct {
	auth *authconfig.AuthService
	log  *applog.Logger
}

func NewIAMService(auth *authconfig.AuthService, log *applog.Logger) *IAMService {
	return &IAMService{auth: auth, log: log}
}
