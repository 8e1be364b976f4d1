package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	// BaseURL is the provider endpoint, e.g. "https://lnbits.example.com".
	BaseURL string
	Timeout time.Duration
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ Gateway = (*Client)(nil)

type accountResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AdminKey string `json:"adminkey"`
}

type walletCredentialsResponse struct {
	ID          string `json:"id"`
	AdminKey    string `json:"adminkey"`
	InKey       string `json:"inkey"`
	BalanceMsat int64  `json:"balance_msat"`
}

type walletResponse struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type invoiceResponse struct {
	PaymentRequest string `json:"payment_request"`
	CheckingID     string `json:"checking_id"`
}

type decodedInvoiceResponse struct {
	AmountMsat int64 `json:"amount_msat"`
}

type historyEntry struct {
	CheckingID string  `json:"checking_id"`
	Pending    bool    `json:"pending"`
	Amount     int64   `json:"amount"`
	Memo       string  `json:"memo"`
	Time       float64 `json:"time"`
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, body any, query url.Values) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	return c.http.Do(req)
}

func (c *Client) createAccount(ctx context.Context, name string) (accountResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/account", "", map[string]string{"name": name}, nil)
	if err != nil {
		return accountResponse{}, fmt.Errorf("%w: %v", ErrAccountCreation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return accountResponse{}, ErrAccountCreation
	}

	var account accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return accountResponse{}, ErrBadResponseBody
	}
	return account, nil
}

// CreateWallet creates a throwaway account, then a wallet under it. The
// account credentials are discarded so the wallet is reachable only
// through the returned keys.
func (c *Client) CreateWallet(ctx context.Context, name string) (WalletCredentials, error) {
	account, err := c.createAccount(ctx, "ghost")
	if err != nil {
		return WalletCredentials{}, fmt.Errorf("%w: %v", ErrWalletCreation, err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/wallet", account.AdminKey, map[string]string{"name": name}, nil)
	if err != nil {
		return WalletCredentials{}, fmt.Errorf("%w: %v", ErrWalletCreation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WalletCredentials{}, ErrWalletCreation
	}

	var creds walletCredentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return WalletCredentials{}, ErrBadResponseBody
	}

	return WalletCredentials{
		WalletID: creds.ID,
		AdminKey: creds.AdminKey,
		ReadKey:  creds.InKey,
	}, nil
}

// GetBalance returns the wallet balance in whole sats. The provider
// reports msats; sub-sat remainders are truncated.
func (c *Client) GetBalance(ctx context.Context, readKey string) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/wallet", readKey, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWalletFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrWalletFetch
	}

	var wallet walletResponse
	if err := json.NewDecoder(resp.Body).Decode(&wallet); err != nil {
		return 0, ErrBadResponseBody
	}

	return int64(wallet.Balance) / 1000, nil
}

func (c *Client) CreateInvoice(ctx context.Context, readKey string, amountSats int64, memo string) (Invoice, error) {
	body := map[string]any{
		"out":    false,
		"amount": amountSats,
		"memo":   memo,
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/payments", readKey, body, nil)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrCreateInvoice, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return Invoice{}, ErrCreateInvoice
	}

	var inv invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return Invoice{}, ErrBadResponseBody
	}
	if inv.PaymentRequest == "" || inv.CheckingID == "" {
		return Invoice{}, ErrBadResponseBody
	}

	return Invoice{PaymentRequest: inv.PaymentRequest, CheckingID: inv.CheckingID}, nil
}

func (c *Client) PayInvoice(ctx context.Context, adminKey string, invoice string) error {
	body := map[string]any{
		"out":    true,
		"bolt11": invoice,
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/payments", adminKey, body, nil)
	if err != nil {
		// The request may have reached the provider before the
		// transport failed, so the payment cannot be assumed dead.
		return &UnknownOutcomeError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusForbidden:
		return ErrNotEnoughSats
	case 520:
		return ErrInvoiceAlreadyPaid
	default:
		return ErrPayInvoice
	}
}

func (c *Client) DecodeInvoice(ctx context.Context, invoice string) (int64, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/payments/decode", "", map[string]string{"data": invoice}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecodeInvoice, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrDecodeInvoice
	}

	var decoded decodedInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, ErrBadResponseBody
	}

	return decoded.AmountMsat / 1000, nil
}

func (c *Client) Transfer(ctx context.Context, fromAdminKey string, toReadKey string, amountSats int64) error {
	invoice, err := c.CreateInvoice(ctx, toReadKey, amountSats, "")
	if err != nil {
		return err
	}
	return c.PayInvoice(ctx, fromAdminKey, invoice.PaymentRequest)
}

func (c *Client) WalletHistory(ctx context.Context, readKey string, offset, limit int) ([]Transaction, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/payments", readKey, nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrWalletFetch
	}

	var entries []historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, ErrBadResponseBody
	}

	txs := make([]Transaction, 0, len(entries))
	for _, entry := range entries {
		txs = append(txs, Transaction{
			CheckingID: entry.CheckingID,
			Pending:    entry.Pending,
			Amount:     entry.Amount / 1000, // provider reports msats
			Memo:       entry.Memo,
			Time:       entry.Time,
		})
	}
	return txs, nil
}
