package bsdk

import (
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "lnbounty"

// normalizeKey converts a baseURL into a stable key name for keyring storage.
// It currently trims trailing slashes and lowercases the host portion to avoid
// accidental duplicates like https://example.com/ and https://example.com.
func normalizeKey(baseURL string) string {
	s := strings.TrimSpace(baseURL)
	s = strings.TrimRight(s, "/")
	s = strings.ToLower(s)
	return s
}

func refreshKey(baseURL string) string {
	return normalizeKey(baseURL) + "#refresh"
}

// SaveTokens stores the access and refresh tokens in the OS keyring under the
// normalized baseURL key. An empty refresh token leaves any stored refresh
// token untouched.
func SaveTokens(baseURL, access, refresh string) error {
	key := normalizeKey(baseURL)
	if err := keyring.Set(keyringService, key, access); err != nil {
		return err
	}
	if refresh != "" {
		return keyring.Set(keyringService, refreshKey(baseURL), refresh)
	}
	return nil
}

// LoadTokens retrieves the access and refresh tokens stored for the given
// baseURL. Missing entries come back as empty strings so callers can decide
// whether to prompt for login.
func LoadTokens(baseURL string) (access string, refresh string) {
	key := normalizeKey(baseURL)
	access, _ = keyring.Get(keyringService, key)
	refresh, _ = keyring.Get(keyringService, refreshKey(baseURL))
	return access, refresh
}

// DeleteToken removes the access token entry for the given baseURL from the
// OS keyring. It is a convenience for logout flows.
func DeleteToken(baseURL string) error {
	return keyring.Delete(keyringService, normalizeKey(baseURL))
}

// DeleteRefreshToken removes the refresh token entry for the given baseURL.
func DeleteRefreshToken(baseURL string) error {
	return keyring.Delete(keyringService, refreshKey(baseURL))
}
