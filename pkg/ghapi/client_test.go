package ghapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticatedUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer oauth-token" {
			t.Errorf("expected oauth bearer header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         101,
			"login":      "alice",
			"email":      "alice@example.com",
			"avatar_url": "https://avatars.example.com/alice",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "app-token"})
	user, err := client.AuthenticatedUser(context.Background(), "oauth-token")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if user.ID != 101 || user.Login != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthenticatedUserFallsBackToClientToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("expected configured token, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "login": "bot"})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Token: "app-token"})
	if _, err := client.AuthenticatedUser(context.Background(), ""); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
}

func TestAuthenticatedUserRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	if _, err := client.AuthenticatedUser(context.Background(), "expired"); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
}
