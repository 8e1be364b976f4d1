package bsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lnbounty/bounty-api/pkg/api/schemas"
)

// RequestEditorFn mutates an outgoing request before it is sent. The SDK uses
// this hook to attach bearer credentials without the client knowing about
// token storage.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// Client is a thin HTTP wrapper over the bounty API. Every call returns the
// HTTP status alongside the decoded payload so callers can branch on 401 or
// 404 without parsing error strings.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	editors []RequestEditorFn
}

type ClientOption func(*Client)

// WithRequestEditorFn registers an editor applied to every outgoing request.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) {
		c.editors = append(c.editors, fn)
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return 0, err
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || out == nil {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

// TokenPair is the payload of a successful refresh call.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *Client) AuthRefresh(ctx context.Context, refreshToken string) (*TokenPair, int, error) {
	in := map[string]string{"refresh_token": refreshToken}
	var out TokenPair
	status, err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", nil, in, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

func (c *Client) Me(ctx context.Context) (*schemas.User, int, error) {
	var out struct {
		User schemas.User `json:"user"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out.User, status, nil
}

func (c *Client) GetUser(ctx context.Context, login string) (*schemas.User, int, error) {
	var out struct {
		User schemas.User `json:"user"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(login), nil, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out.User, status, nil
}

func (c *Client) Wallet(ctx context.Context) (*schemas.Wallet, int, error) {
	var out schemas.Wallet
	status, err := c.doJSON(ctx, http.MethodGet, "/api/wallet", nil, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

func (c *Client) CreateDepositInvoice(ctx context.Context, amountSats int64) (*schemas.Invoice, int, error) {
	in := map[string]int64{"amount_sats": amountSats}
	var out schemas.Invoice
	status, err := c.doJSON(ctx, http.MethodPost, "/api/wallet/deposit", nil, in, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

func (c *Client) Withdraw(ctx context.Context, invoice string) (int, error) {
	in := map[string]string{"invoice": invoice}
	return c.doJSON(ctx, http.MethodPost, "/api/wallet/withdraw", nil, in, nil)
}

func (c *Client) DecodeInvoice(ctx context.Context, invoice string) (int64, int, error) {
	in := map[string]string{"invoice": invoice}
	var out struct {
		AmountSats int64 `json:"amount_sats"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, "/api/wallet/decode", nil, in, &out)
	if err != nil || status >= 300 {
		return 0, status, err
	}
	return out.AmountSats, status, nil
}

func (c *Client) WalletHistory(ctx context.Context, offset, limit int) ([]schemas.Transaction, int, error) {
	query := url.Values{}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Transactions []schemas.Transaction `json:"transactions"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/wallet/history", query, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return out.Transactions, status, nil
}

// IssueListOptions narrows the issue listing.
type IssueListOptions struct {
	Repo     string
	OnlyOpen bool
	Offset   int
	Limit    int
}

func (c *Client) ListIssues(ctx context.Context, opts IssueListOptions) ([]schemas.Issue, int, error) {
	query := url.Values{}
	if opts.Repo != "" {
		query.Set("repo", opts.Repo)
	}
	if opts.OnlyOpen {
		query.Set("open", "true")
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var out struct {
		Issues []schemas.Issue `json:"issues"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/issues", query, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return out.Issues, status, nil
}

func (c *Client) GetIssue(ctx context.Context, issueID string) (*schemas.Issue, int, error) {
	var out schemas.Issue
	status, err := c.doJSON(ctx, http.MethodGet, "/api/issues/"+url.PathEscape(issueID), nil, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

func (c *Client) ListRepositories(ctx context.Context, offset, limit int) ([]schemas.Repository, int, error) {
	query := url.Values{}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Repositories []schemas.Repository `json:"repositories"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/repos", query, nil, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return out.Repositories, status, nil
}

func (c *Client) CreateReward(ctx context.Context, issueURL string, amountSats int64) (*schemas.Reward, int, error) {
	in := map[string]any{"issue_url": issueURL, "amount_sats": amountSats}
	var out schemas.Reward
	status, err := c.doJSON(ctx, http.MethodPost, "/api/rewards", nil, in, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

func (c *Client) AddReward(ctx context.Context, issueID string, amountSats int64) (*schemas.Reward, int, error) {
	in := map[string]int64{"amount_sats": amountSats}
	var out schemas.Reward
	status, err := c.doJSON(ctx, http.MethodPost, "/api/issues/"+url.PathEscape(issueID)+"/rewards", nil, in, &out)
	if err != nil || status >= 300 {
		return nil, status, err
	}
	return &out, status, nil
}

// TotalRewards sums matching pledges. Pass an empty repo or zero issueNumber
// to leave that filter unset.
func (c *Client) TotalRewards(ctx context.Context, repo string, issueNumber int) (int64, int, error) {
	query := url.Values{}
	if repo != "" {
		query.Set("repo", repo)
	}
	if issueNumber > 0 {
		query.Set("issue_number", strconv.Itoa(issueNumber))
	}
	var out struct {
		TotalSats int64 `json:"total_sats"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/rewards/total", query, nil, &out)
	if err != nil || status >= 300 {
		return 0, status, err
	}
	return out.TotalSats, status, nil
}
