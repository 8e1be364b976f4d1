package bsdk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lnbounty/bounty-api/pkg/bauth"
	"github.com/lnbounty/bounty-api/pkg/bsdk/berr"
	"github.com/spf13/viper"
)

// Sdk is a small wrapper around the API client with auth baked in. It
// provides a minimal surface that CLI commands can use so they don't need to
// wire keyring + client + headers themselves.
type Sdk struct {
	Client       *Client
	BaseURL      string
	Token        string
	RefreshToken string
}

// skipAuthEditorKey skips authRequestEditor when present in the context so the
// refresh call can execute without recursive token checks.
type skipAuthEditorKey struct{}

// ClearCredentials removes cached tokens for the SDK's base URL from the keyring
// and resets the in-memory copies.
func (s *Sdk) ClearCredentials() {
	if s == nil || s.BaseURL == "" {
		return
	}
	_ = DeleteToken(s.BaseURL)
	_ = DeleteRefreshToken(s.BaseURL)
	s.Token = ""
	s.RefreshToken = ""
}

// HandleUnauthorized inspects an HTTP status code and clears any cached token
// if it represents an authentication failure. It returns true when the status
// was 401 so callers can provide a helpful message to the user.
func (s *Sdk) HandleUnauthorized(status int) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	s.ClearCredentials()
	return true
}

// NewSdk returns an initialized SDK instance with automatic token refresh.
func NewSdk() (*Sdk, error) {
	baseURL := viper.GetString(BaseUrlKey)
	access, refresh := LoadTokens(baseURL)

	sdk := &Sdk{
		BaseURL:      baseURL,
		Token:        access,
		RefreshToken: refresh,
	}

	c, err := NewClient(baseURL, WithRequestEditorFn(sdk.authRequestEditor))
	if err != nil {
		return nil, err
	}
	sdk.Client = c
	return sdk, nil
}

func (s *Sdk) authRequestEditor(ctx context.Context, req *http.Request) error {
	if ctx.Value(skipAuthEditorKey{}) != nil {
		return nil
	}
	if err := s.ensureValidToken(ctx); err != nil {
		return err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return nil
}

func (s *Sdk) ensureValidToken(ctx context.Context) error {
	if s.Token == "" {
		if s.RefreshToken == "" {
			return berr.New(berr.CodeUnauthorized, fmt.Errorf("missing credentials"))
		}
		return s.refreshTokens(ctx)
	}
	expired, err := bauth.IsTokenExpired(s.Token, 30*time.Second)
	if err != nil {
		return berr.New(berr.CodeUnknown, err)
	}
	if expired {
		return s.refreshTokens(ctx)
	}
	return nil
}

func (s *Sdk) refreshTokens(ctx context.Context) error {
	if s.RefreshToken == "" {
		return berr.New(berr.CodeUnauthorized, fmt.Errorf("missing refresh token"))
	}
	ctx = context.WithValue(ctx, skipAuthEditorKey{}, true)
	pair, status, err := s.Client.AuthRefresh(ctx, s.RefreshToken)
	if err != nil {
		return berr.New(berr.CodeRefreshFailed, err)
	}
	if pair == nil {
		return berr.New(berr.CodeRefreshFailed, fmt.Errorf("refresh failed: status %d", status))
	}
	s.Token = pair.AccessToken
	s.RefreshToken = pair.RefreshToken
	if err := SaveTokens(s.BaseURL, s.Token, s.RefreshToken); err != nil {
		return berr.New(berr.CodeUnknown, err)
	}
	return nil
}
