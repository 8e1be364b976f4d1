package authconfig

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/config"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
	"github.com/lnbounty/bounty-api/pkg/api/services/users"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/bauth"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/lnbounty/bounty-api/pkg/ghapi"
	"github.com/lnbounty/bounty-api/pkg/kv"
	"golang.org/x/oauth2"
	oauth2github "golang.org/x/oauth2/github"
)

const (
	// TokenAudience is the expected audience claim for access tokens.
	TokenAudience = "lnbounty"

	// Key prefixes for KV store
	kvPrefixState   = "auth:state:"
	kvPrefixRefresh = "auth:refresh:"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrStateAlreadyUsed    = errors.New("state token already used")
	ErrRedirectNotAllowed  = errors.New("redirect URI not allowed")
)

// AuthService encapsulates OAuth provider configuration and methods for
// generating and validating the small JWTs used by the system (state
// tokens and access tokens). Provider details stay internal so callers
// work with simple method calls.
type AuthService struct {
	cfg              *config.EnvConfig
	githubConfig     *oauth2.Config
	jwtSecret        []byte
	users            *users.Service
	github           *ghapi.Client
	kv               kv.Store
	refreshTTL       time.Duration
	allowedRedirects []string
	log              *applog.Logger
}

// StateClaims is the short-lived JWT shape used for the OAuth state
// parameter. It carries the original redirect URI and whether the
// server should include the minted token in the final redirect.
type StateClaims struct {
	Provider     string `json:"provider"`
	RedirectURI  string `json:"redirect_uri"`
	IncludeToken bool   `json:"include_token"`
	StateID      string `json:"state_id"`
	jwt.RegisteredClaims
}

// GitHubUser is the subset of fields we use from GitHub's /user API.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func NewAuthService(cfg *config.EnvConfig, userSvc *users.Service, github *ghapi.Client, kvStore kv.Store, log *applog.Logger) *AuthService {
	svc := &AuthService{
		cfg:        cfg,
		jwtSecret:  []byte(cfg.AuthSecret),
		users:      userSvc,
		github:     github,
		kv:         kvStore,
		refreshTTL: time.Duration(cfg.RefreshTokenTTL) * time.Second,
		log:        log,
	}

	if cfg.AllowedRedirects != "" {
		svc.allowedRedirects = strings.Split(cfg.AllowedRedirects, ",")
		for i := range svc.allowedRedirects {
			svc.allowedRedirects[i] = strings.TrimSpace(svc.allowedRedirects[i])
		}
	}

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		svc.githubConfig = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     oauth2github.Endpoint,
			Scopes:       []string{"user:email"},
			RedirectURL:  fmt.Sprintf("%s/api/auth/callback", cfg.BaseURL),
		}
	} else {
		log.Info("github oauth not configured", "hint", "set GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET to enable")
	}

	return svc
}

func (s *AuthService) AccessTokenTTL() int {
	return s.cfg.AccessTokenTTL
}

// IsAllowedRedirect checks if the given URI is in the allowlist.
func (s *AuthService) IsAllowedRedirect(uri string) bool {
	if len(s.allowedRedirects) == 0 {
		return false
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}

	origin := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	for _, allowed := range s.allowedRedirects {
		if strings.HasPrefix(origin, allowed) || strings.HasPrefix(uri, allowed) {
			return true
		}
	}
	return false
}

// GenerateState builds a signed, short-lived JWT to be used as the
// OAuth state parameter. The state is stored in KV for single-use
// validation.
func (s *AuthService) GenerateState(ctx context.Context, provider, redirectURI string, includeToken bool) (string, error) {
	if !s.IsAllowedRedirect(redirectURI) {
		return "", ErrRedirectNotAllowed
	}

	stateID := generateRandomString(32)

	claims := StateClaims{
		Provider:     provider,
		RedirectURI:  redirectURI,
		IncludeToken: includeToken,
		StateID:      stateID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   TokenAudience,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(
				time.Duration(s.cfg.AccessTokenTTL) * time.Second,
			)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(s.cfg.AccessTokenTTL) * time.Second
	if err := s.kv.Set(ctx, kvPrefixState+stateID, []byte("1"), ttl); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return signedToken, nil
}

// ValidateState verifies the HMAC signature and expiry of a state
// token, enforces single use through KV, and returns the claims.
func (s *AuthService) ValidateState(ctx context.Context, state string) (*StateClaims, error) {
	parsed, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*StateClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid state token")
	}

	_, err = s.kv.Get(ctx, kvPrefixState+claims.StateID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrStateAlreadyUsed
		}
		return nil, fmt.Errorf("failed to validate state: %w", err)
	}

	if err := s.kv.Delete(ctx, kvPrefixState+claims.StateID); err != nil {
		s.log.Warn("failed to delete state after use", "error", err)
	}

	return claims, nil
}

// GetAuthorizeURL returns the provider authorize URL for a signed
// state, or the empty string if the provider is not configured.
func (s *AuthService) GetAuthorizeURL(state string) string {
	if s.githubConfig == nil {
		return ""
	}
	return s.githubConfig.AuthCodeURL(state)
}

// ExchangeCode exchanges a provider authorization code for an oauth2.Token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.githubConfig == nil {
		return nil, fmt.Errorf("github oauth not configured")
	}
	return s.githubConfig.Exchange(ctx, code)
}

// GetGitHubUser fetches the GitHub profile for the provided oauth2
// access token.
func (s *AuthService) GetGitHubUser(ctx context.Context, token *oauth2.Token) (*GitHubUser, error) {
	user, err := s.github.AuthenticatedUser(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	return &GitHubUser{
		ID:        user.ID,
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}

// SyncGitHubUser upserts the local user row for a GitHub identity.
func (s *AuthService) SyncGitHubUser(ctx context.Context, ghUser *GitHubUser) (*models.User, error) {
	return s.users.GetOrCreate(ctx, users.Identity{
		GithubID:  ghUser.ID,
		Login:     ghUser.Login,
		AvatarURL: ghUser.AvatarURL,
		Email:     ghUser.Email,
	})
}

// IssueToken mints an application JWT for a local user, embedding the
// upstream GitHub identity separately so a login rename never loses
// the provider binding.
func (s *AuthService) IssueToken(user *schemas.User) (string, error) {
	uc := &bauth.UserClaims{
		ID:        user.ID,
		Login:     user.Login,
		AvatarURL: user.AvatarURL,
		GithubID:  user.GithubID,
		Iss:       TokenAudience,
		Aud:       TokenAudience,
		Iat:       time.Now().Unix(),
		Exp:       time.Now().Add(time.Duration(s.cfg.AccessTokenTTL) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, bauth.ToClaims(uc))
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) IssueTokensWithRefresh(ctx context.Context, user *schemas.User) (accessToken string, refreshToken string, err error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.createRefreshToken(ctx, user.ID)
	if err != nil {
		return "", "", err
	}
	return token, refreshToken, nil
}

// RefreshTokens rotates a refresh token and mints a fresh access token.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := s.verifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	if err := s.deleteRefreshTokenByHash(ctx, hashToken(refreshToken)); err != nil {
		s.log.Warn("failed to delete old refresh token", "error", err)
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch user: %w", err)
	}

	return s.IssueTokensWithRefresh(ctx, UserToSchema(user))
}

// ValidateToken verifies an application JWT and returns a minimal
// schemas.User. Enforces HMAC signing and the audience claim.
func (s *AuthService) ValidateToken(tokenString string) (*schemas.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		uc, err := bauth.FromMapClaims(claims)
		if err != nil {
			return nil, err
		}

		if uc.Aud != TokenAudience {
			return nil, fmt.Errorf("invalid audience: expected %q, got %q", TokenAudience, uc.Aud)
		}

		return &schemas.User{
			ID:        uc.ID,
			Login:     uc.Login,
			AvatarURL: uc.AvatarURL,
			GithubID:  uc.GithubID,
		}, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// UserToSchema converts a user row into its API shape.
func UserToSchema(user *models.User) *schemas.User {
	return &schemas.User{
		ID:        user.ID.String(),
		Login:     user.Login,
		AvatarURL: user.AvatarURL,
		GithubID:  strconv.FormatInt(user.GithubID, 10),
	}
}

// generateRandomString generates a cryptographically secure random
// string of the specified length using base64url encoding.
func generateRandomString(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length]
}

func (s *AuthService) createRefreshToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return raw, s.storeRefreshToken(ctx, userID, raw)
}

// storeRefreshToken stores the refresh token in KV with the user ID as
// value, keyed by the token's hash.
func (s *AuthService) storeRefreshToken(ctx context.Context, userID, token string) error {
	return s.kv.Set(ctx, kvPrefixRefresh+hashToken(token), []byte(userID), s.refreshTTL)
}

func (s *AuthService) deleteRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	return s.kv.Delete(ctx, kvPrefixRefresh+tokenHash)
}

// verifyRefreshToken validates a refresh token and returns the
// associated user ID.
func (s *AuthService) verifyRefreshToken(ctx context.Context, token string) (string, error) {
	data, err := s.kv.Get(ctx, kvPrefixRefresh+hashToken(token))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}
	return string(data), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
