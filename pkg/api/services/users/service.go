// Package users resolves external GitHub identities into internal user
// rows. Users are created lazily: on first login or the first time they
// appear as a contributor.
package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/uptrace/bun"
)

var ErrUserNotFound = errors.New("user not found")

// Identity is the raw external identity as reported by GitHub.
type Identity struct {
	GithubID  int64
	Login     string
	AvatarURL string
	Email     string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// GetOrCreate upserts a user keyed by their immutable GitHub ID. Login
// and avatar are refreshed on every call since they change upstream.
func (s *Service) GetOrCreate(ctx context.Context, identity Identity) (*models.User, error) {
	return getOrCreate(ctx, s.db, identity)
}

// GetOrCreateTx runs the upsert on an existing transaction so callers
// holding an issue lock can register a contributor atomically.
func (s *Service) GetOrCreateTx(ctx context.Context, idb bun.IDB, identity Identity) (*models.User, error) {
	return getOrCreate(ctx, idb, identity)
}

func getOrCreate(ctx context.Context, idb bun.IDB, identity Identity) (*models.User, error) {
	var user models.User
	err := idb.NewSelect().
		Model(&user).
		Where("u.github_id = ?", identity.GithubID).
		Scan(ctx)

	if err == nil {
		user.Login = identity.Login
		user.AvatarURL = identity.AvatarURL
		if identity.Email != "" {
			user.Email = identity.Email
		}
		if _, err := idb.NewUpdate().Model(&user).WherePK().Exec(ctx); err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	user = models.User{
		GithubID:  identity.GithubID,
		Login:     identity.Login,
		AvatarURL: identity.AvatarURL,
		Email:     identity.Email,
	}
	if _, err := idb.NewInsert().Model(&user).Exec(ctx); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileUpdate carries the caller-editable profile fields. Nil fields
// are left unchanged. Login and avatar follow GitHub and cannot be set
// here.
type ProfileUpdate struct {
	Email *string
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if _, err := s.db.NewUpdate().Model(user).WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.NewSelect().
		Model(&user).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := s.db.NewSelect().
		Model(&user).
		Where("u.login = ?", login).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
