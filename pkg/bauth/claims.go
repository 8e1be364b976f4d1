package bauth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims represents a minimal view of the application JWT payload.
// Important: when parsed without verification this is intended for display
// and UX only. Do not use these values for security decisions unless the
// token has been cryptographically verified by a trusted key.
type UserClaims struct {
	ID        string
	Login     string
	AvatarURL string
	GithubID  string
	Iss       string
	Aud       string
	Iat       int64
	Exp       int64
}

// ToClaims converts UserClaims into jwt.MapClaims for signing. Empty string
// fields are omitted so tokens stay small and comparisons stay predictable.
func ToClaims(uc *UserClaims) jwt.MapClaims {
	mc := jwt.MapClaims{}

	if uc.ID != "" {
		mc["sub"] = uc.ID
	}
	if uc.Login != "" {
		mc["login"] = uc.Login
	}
	if uc.AvatarURL != "" {
		mc["avatar_url"] = uc.AvatarURL
	}
	if uc.GithubID != "" {
		mc["github_id"] = uc.GithubID
	}
	if uc.Iss != "" {
		mc["iss"] = uc.Iss
	}
	if uc.Aud != "" {
		mc["aud"] = uc.Aud
	}
	if uc.Iat != 0 {
		mc["iat"] = uc.Iat
	}
	if uc.Exp != 0 {
		mc["exp"] = uc.Exp
	}

	return mc
}

// ParseTokenClaims extracts raw claims from a JWT without verifying its
// signature. This is useful for clients that need to inspect token payloads
// but do not possess the issuer's signing key. WARNING: do not rely on this
// for authorization.
func ParseTokenClaims(tokenStr string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims
	parser := new(jwt.Parser)
	_, _, err := parser.ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// FromToken parses a token without verification and maps its claims.
func FromToken(tokenStr string) (*UserClaims, error) {
	claims, err := ParseTokenClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromMapClaims(claims)
}

// FromMapClaims reads token claims and maps them into a stable UserClaims
// structure. It tolerates both string and numeric forms of the `sub`,
// `github_id`, `iat`, and `exp` claims and normalizes them.
func FromMapClaims(mc jwt.MapClaims) (*UserClaims, error) {
	uc := &UserClaims{}

	uc.ID = stringClaim(mc, "sub")
	uc.GithubID = stringClaim(mc, "github_id")

	if login, ok := mc["login"].(string); ok {
		uc.Login = login
	}
	if avatar, ok := mc["avatar_url"].(string); ok {
		uc.AvatarURL = avatar
	}
	if iss, ok := mc["iss"].(string); ok {
		uc.Iss = iss
	}
	if aud, ok := mc["aud"].(string); ok {
		uc.Aud = aud
	}

	uc.Iat = intClaim(mc, "iat")
	uc.Exp = intClaim(mc, "exp")

	return uc, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	v, ok := mc[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func intClaim(mc jwt.MapClaims, key string) int64 {
	switch t := mc[key].(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

// IsTokenExpired returns true when the access token is expired or within the
// provided skew window. It relies on FromToken to parse the JWT without
// verifying the signature, which is sufficient for local UX decisions.
func IsTokenExpired(token string, skew time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	uc, err := FromToken(token)
	if err != nil {
		return true, err
	}
	if uc.Exp == 0 {
		return false, nil
	}
	expiresAt := time.Unix(uc.Exp, 0).Add(-skew)
	return time.Now().After(expiresAt), nil
}
