// Package escrow moves funds between user wallets and per-issue escrow
// wallets through the wallet provider, and owns the get-or-create
// wallet directories.
package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
	"github.com/uptrace/bun"
)

type Bank struct {
	gateway lnbits.Gateway
	log     *applog.Logger
}

func NewBank(gateway lnbits.Gateway, log *applog.Logger) *Bank {
	return &Bank{gateway: gateway, log: log}
}

// Gateway exposes the underlying wallet provider for callers that need
// invoice operations directly (deposits, withdrawals).
func (b *Bank) Gateway() lnbits.Gateway {
	return b.gateway
}

// Pledge moves sats from the user's wallet into the issue's escrow
// wallet. Both wallets are created on first use. Issue-open checks are
// the caller's responsibility so the check and the transfer can share
// one locked transaction.
func (b *Bank) Pledge(ctx context.Context, idb bun.IDB, userID, issueID uuid.UUID, amountSats int64) error {
	userWallet, err := b.UserWallet(ctx, idb, userID)
	if err != nil {
		return err
	}
	issueWallet, err := b.IssueWallet(ctx, idb, issueID)
	if err != nil {
		return err
	}
	return b.gateway.Transfer(ctx, userWallet.AdminKey, issueWallet.ReadKey, amountSats)
}

// Settle transfers the escrow wallet's entire live balance to the
// winner's wallet and returns the amount moved. The provider balance,
// not the pledge sum, is authoritative: paying a derived total could
// strand sats or exceed what the wallet actually holds.
func (b *Bank) Settle(ctx context.Context, idb bun.IDB, issueID, winnerID uuid.UUID) (int64, error) {
	issueWallet, err := b.IssueWallet(ctx, idb, issueID)
	if err != nil {
		return 0, err
	}
	winnerWallet, err := b.UserWallet(ctx, idb, winnerID)
	if err != nil {
		return 0, err
	}

	balance, err := b.gateway.GetBalance(ctx, issueWallet.ReadKey)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		b.log.Warn("settling issue with empty escrow wallet", "issue_id", issueID)
		return 0, nil
	}

	if err := b.gateway.Transfer(ctx, issueWallet.AdminKey, winnerWallet.ReadKey, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// EscrowBalance reports the live balance of an issue's escrow wallet.
func (b *Bank) EscrowBalance(ctx context.Context, idb bun.IDB, issueID uuid.UUID) (int64, error) {
	issueWallet, err := b.IssueWallet(ctx, idb, issueID)
	if err != nil {
		return 0, err
	}
	return b.gateway.GetBalance(ctx, issueWallet.ReadKey)
}
