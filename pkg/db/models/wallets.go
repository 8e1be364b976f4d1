package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserWallet maps a user to their custodial wallet. AdminKey carries
// spend authority and must never cross an API boundary.
type UserWallet struct {
	bun.BaseModel `bun:"table:lightning_wallets,alias:uw"`

	ID               uuid.UUID `bun:"type:uuid,pk"`
	UserID           uuid.UUID `bun:"type:uuid,unique,notnull"`
	ProviderWalletID string    `bun:",notnull"`
	AdminKey         string    `bun:",notnull"`
	ReadKey          string    `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull"`
}

// IssueWallet holds all sats pledged to one issue until settlement.
type IssueWallet struct {
	bun.BaseModel `bun:"table:issue_wallets,alias:iw"`

	ID               uuid.UUID `bun:"type:uuid,pk"`
	IssueID          uuid.UUID `bun:"type:uuid,unique,notnull"`
	ProviderWalletID string    `bun:",notnull"`
	AdminKey         string    `bun:",notnull"`
	ReadKey          string    `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull"`
}

var _ bun.BeforeAppendModelHook = (*UserWallet)(nil)

func (w *UserWallet) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		w.CreatedAt = time.Now()
		w.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		w.UpdatedAt = time.Now()
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*IssueWallet)(nil)

func (w *IssueWallet) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		w.CreatedAt = time.Now()
		w.UpdatedAt = time.Now()
	case *bun.UpdateQuery:
		w.UpdatedAt = time.Now()
	}
	return nil
}
