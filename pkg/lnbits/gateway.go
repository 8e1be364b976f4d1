// Package lnbits talks to an LNbits-compatible custodial wallet
// provider. The provider is the system of record for funds: balances
// reported here are authoritative and may differ from any ledger total
// derived from pledge rows.
package lnbits

import "context"

// WalletCredentials is the credential pair issued per wallet. AdminKey
// can spend, ReadKey can only read balance and history.
type WalletCredentials struct {
	WalletID string
	AdminKey string
	ReadKey  string
}

// Invoice is a freshly created Lightning invoice.
type Invoice struct {
	PaymentRequest string
	CheckingID     string
}

// Transaction is one entry of a wallet's payment history. Amount is in
// sats, negative for outgoing payments.
type Transaction struct {
	CheckingID string
	Pending    bool
	Amount     int64
	Memo       string
	Time       float64
}

// Gateway abstracts the wallet provider so services and tests can
// substitute a double without touching the settlement logic.
type Gateway interface {
	// CreateWallet provisions a fresh custodial wallet. Each call
	// creates a throwaway provider account so the wallet is reachable
	// only through the returned keys.
	CreateWallet(ctx context.Context, name string) (WalletCredentials, error)

	// GetBalance returns the wallet's balance in whole sats.
	GetBalance(ctx context.Context, readKey string) (int64, error)

	CreateInvoice(ctx context.Context, readKey string, amountSats int64, memo string) (Invoice, error)

	// PayInvoice fails with ErrNotEnoughSats, ErrInvoiceAlreadyPaid,
	// ErrPayInvoice, or *UnknownOutcomeError when the transport failed
	// before a response was read.
	PayInvoice(ctx context.Context, adminKey string, invoice string) error

	// DecodeInvoice returns the invoice amount in sats.
	DecodeInvoice(ctx context.Context, invoice string) (int64, error)

	// Transfer moves sats between two wallets by creating an invoice
	// on the destination and paying it from the source. The two calls
	// are not atomic: a failure after CreateInvoice leaves an unpaid
	// invoice and no funds moved, which is safe to retry.
	Transfer(ctx context.Context, fromAdminKey string, toReadKey string, amountSats int64) error

	WalletHistory(ctx context.Context, readKey string, offset, limit int) ([]Transaction, error)
}
