// Package wallet exposes a user's custodial wallet: balance, deposit
// invoices, withdrawals and payment history.
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/services/escrow"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/branta"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
	"github.com/uptrace/bun"
)

type Service struct {
	db     *bun.DB
	bank   *escrow.Bank
	branta *branta.Client
	log    *applog.Logger
}

func NewService(db *bun.DB, bank *escrow.Bank, brantaClient *branta.Client, log *applog.Logger) *Service {
	return &Service{
		db:     db,
		bank:   bank,
		branta: brantaClient,
		log:    log,
	}
}

// Details is the read model for a wallet. Only the balance-derived
// fields leave this package; spend keys never do.
type Details struct {
	UserID    uuid.UUID
	TotalSats int64
}

// GetOrCreate returns the user's wallet details, creating the wallet on
// first access.
func (s *Service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Details, error) {
	wallet, err := s.bank.UserWallet(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	balance, err := s.bank.Gateway().GetBalance(ctx, wallet.ReadKey)
	if err != nil {
		return nil, err
	}

	return &Details{UserID: userID, TotalSats: balance}, nil
}

// CreateDepositInvoice creates an invoice on the user's wallet for an
// incoming payment. The compliance notifier runs detached: its outcome
// is logged and never affects the deposit.
func (s *Service) CreateDepositInvoice(ctx context.Context, userID uuid.UUID, amountSats int64) (lnbits.Invoice, error) {
	wallet, err := s.bank.UserWallet(ctx, s.db, userID)
	if err != nil {
		return lnbits.Invoice{}, err
	}

	invoice, err := s.bank.Gateway().CreateInvoice(ctx, wallet.ReadKey, amountSats, "")
	if err != nil {
		return lnbits.Invoice{}, err
	}

	if s.branta.Enabled() {
		go func(paymentRequest string) {
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := s.branta.VerifyInvoice(notifyCtx, paymentRequest); err != nil {
				s.log.Warn("branta notification failed", "error", err)
			}
		}(invoice.PaymentRequest)
	}

	return invoice, nil
}

// PayInvoice pays an external invoice from the user's wallet. Gateway
// errors, including ErrNotEnoughSats, propagate unchanged.
func (s *Service) PayInvoice(ctx context.Context, userID uuid.UUID, invoice string) error {
	wallet, err := s.bank.UserWallet(ctx, s.db, userID)
	if err != nil {
		return err
	}
	return s.bank.Gateway().PayInvoice(ctx, wallet.AdminKey, invoice)
}

// DecodeInvoice returns the amount an invoice asks for, in sats.
func (s *Service) DecodeInvoice(ctx context.Context, invoice string) (int64, error) {
	return s.bank.Gateway().DecodeInvoice(ctx, invoice)
}

// History returns the wallet's payment history page.
func (s *Service) History(ctx context.Context, userID uuid.UUID, offset, limit int) ([]lnbits.Transaction, error) {
	wallet, err := s.bank.UserWallet(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.bank.Gateway().WalletHistory(ctx, wallet.ReadKey, offset, limit)
}
