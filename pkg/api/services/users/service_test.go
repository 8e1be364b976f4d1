package users

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/db/dbtest"
)

func TestGetOrCreateKeyedByGithubID(t *testing.T) {
	ctx := context.Background()
	svc := NewService(dbtest.New(t))

	created, err := svc.GetOrCreate(ctx, Identity{GithubID: 42, Login: "alice", AvatarURL: "https://a/1.png"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected an assigned user id")
	}

	// Same GitHub ID with a renamed login updates in place.
	updated, err := svc.GetOrCreate(ctx, Identity{GithubID: 42, Login: "alice-renamed", AvatarURL: "https://a/2.png"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected the same user row, got a new id")
	}
	if updated.Login != "alice-renamed" {
		t.Errorf("expected refreshed login, got %q", updated.Login)
	}
	if updated.AvatarURL != "https://a/2.png" {
		t.Errorf("expected refreshed avatar, got %q", updated.AvatarURL)
	}

	byLogin, err := svc.GetByLogin(ctx, "alice-renamed")
	if err != nil {
		t.Fatalf("lookup by login failed: %v", err)
	}
	if byLogin.ID != created.ID {
		t.Errorf("lookup by login returned a different user")
	}
}

func TestGetOrCreatePreservesEmailWhenAbsent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(dbtest.New(t))

	if _, err := svc.GetOrCreate(ctx, Identity{GithubID: 42, Login: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Settlement-path identities carry no email; the stored one stays.
	updated, err := svc.GetOrCreate(ctx, Identity{GithubID: 42, Login: "alice"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Email != "alice@example.com" {
		t.Errorf("expected stored email preserved, got %q", updated.Email)
	}
}

func TestLookupsReportMissingUsers(t *testing.T) {
	ctx := context.Background()
	svc := NewService(dbtest.New(t))

	if _, err := svc.GetByID(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID: expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GetByLogin(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByLogin: expected ErrUserNotFound, got %v", err)
	}
}
