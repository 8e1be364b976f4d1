package lnbits

import (
	"errors"
	"fmt"
)

var (
	ErrAccountCreation    = errors.New("lnbits: account creation failed")
	ErrWalletCreation     = errors.New("lnbits: wallet creation failed")
	ErrWalletFetch        = errors.New("lnbits: wallet fetch failed")
	ErrCreateInvoice      = errors.New("lnbits: invoice creation failed")
	ErrBadResponseBody    = errors.New("lnbits: unexpected response body")
	ErrPayInvoice         = errors.New("lnbits: invoice payment failed")
	ErrNotEnoughSats      = errors.New("lnbits: not enough sats")
	ErrInvoiceAlreadyPaid = errors.New("lnbits: invoice is already paid")
	ErrDecodeInvoice      = errors.New("lnbits: could not decode invoice")
)

// UnknownOutcomeError reports a payment whose result could not be
// confirmed: the request may or may not have reached the provider.
// Callers must not blindly retry, since the funds may already have
// moved.
type UnknownOutcomeError struct {
	Err error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("lnbits: payment outcome unknown: %v", e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error {
	return e.Err
}
