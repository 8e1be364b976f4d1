// Package branta notifies the Branta payment-verification service
// about created invoices. Notification is best effort: callers fire it
// in a detached goroutine and only log failures.
package branta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNotify = errors.New("branta: payment notification failed")

type Config struct {
	// BaseURL empty disables the notifier.
	BaseURL  string
	APIKey   string
	Merchant string
	Timeout  time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the notifier is configured.
func (c *Client) Enabled() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type paymentBody struct {
	Payment struct {
		Description string `json:"description"`
		Merchant    string `json:"merchant"`
		Payment     string `json:"payment"`
		TTL         string `json:"ttl"`
	} `json:"payment"`
}

// VerifyInvoice registers an invoice with Branta so wallets can verify
// it before paying.
func (c *Client) VerifyInvoice(ctx context.Context, invoice string) error {
	if !c.Enabled() {
		return fmt.Errorf("%w: client not configured", ErrNotify)
	}

	var body paymentBody
	body.Payment.Description = "Account Deposit"
	body.Payment.Merchant = c.cfg.Merchant
	body.Payment.Payment = invoice
	body.Payment.TTL = "86400"

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/payments", &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}
	req.Header.Set("API_KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: unexpected status %d", ErrNotify, resp.StatusCode)
	}
	return nil
}
