package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/uptrace/bun"
)

// UserWallet returns the user's custodial wallet, provisioning one on
// first use. Concurrent first-use races are resolved by the unique
// owner constraint: the loser's insert is a no-op and the winner's row
// is re-read. The loser's freshly provisioned provider wallet is
// orphaned with a zero balance, which is harmless.
func (b *Bank) UserWallet(ctx context.Context, idb bun.IDB, userID uuid.UUID) (*models.UserWallet, error) {
	wallet := new(models.UserWallet)
	err := idb.NewSelect().
		Model(wallet).
		Where("uw.user_id = ?", userID).
		Scan(ctx)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	creds, err := b.gateway.CreateWallet(ctx, fmt.Sprintf("user:%s", userID))
	if err != nil {
		return nil, err
	}

	wallet = &models.UserWallet{
		UserID:           userID,
		ProviderWalletID: creds.WalletID,
		AdminKey:         creds.AdminKey,
		ReadKey:          creds.ReadKey,
	}
	_, err = idb.NewInsert().
		Model(wallet).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	// Re-read so a lost race returns the winner's row.
	wallet = new(models.UserWallet)
	if err := idb.NewSelect().
		Model(wallet).
		Where("uw.user_id = ?", userID).
		Scan(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// IssueWallet returns the issue's escrow wallet, provisioning one on
// the first pledge. Same race policy as UserWallet.
func (b *Bank) IssueWallet(ctx context.Context, idb bun.IDB, issueID uuid.UUID) (*models.IssueWallet, error) {
	wallet := new(models.IssueWallet)
	err := idb.NewSelect().
		Model(wallet).
		Where("iw.issue_id = ?", issueID).
		Scan(ctx)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	creds, err := b.gateway.CreateWallet(ctx, fmt.Sprintf("issue:%s", issueID))
	if err != nil {
		return nil, err
	}

	wallet = &models.IssueWallet{
		IssueID:          issueID,
		ProviderWalletID: creds.WalletID,
		AdminKey:         creds.AdminKey,
		ReadKey:          creds.ReadKey,
	}
	_, err = idb.NewInsert().
		Model(wallet).
		On("CONFLICT (issue_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	wallet = new(models.IssueWallet)
	if err := idb.NewSelect().
		Model(wallet).
		Where("iw.issue_id = ?", issueID).
		Scan(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}
