package iam

import (
	"context"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
)

type ctxKey string

const principalKey ctxKey = "lnbounty.principal"

func (s *IAMService) Principal(ctx context.Context) (*schemas.User, bool) {
	if v := ctx.Value(principalKey); v != nil {
		if p, ok := v.(*schemas.User); ok {
			return p, true
		}
	}
	return nil, false
}

func (s *IAMService) Get(ctx context.Context) (*schemas.User, error) {
	if p, ok := s.Principal(ctx); ok && p != nil {
		return p, nil
	}
	return nil, nil
}

// PrincipalID returns the authenticated user's internal ID, or false
// when the request is anonymous or the token carries a malformed ID.
func (s *IAMService) PrincipalID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := s.Principal(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
