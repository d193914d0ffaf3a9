// Package simplefin pulls posted transactions from a SimpleFIN Bridge.
package simplefin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 30 * time.Second

// Config selects the bridge connection. AccessURL wins; otherwise a URL saved
// in StateFile is used, and failing that Token is claimed and saved there.
type Config struct {
	AccessURL string
	Token     string
	StateFile string
	AccountID string
	Timeout   time.Duration
}

// Account is one bridge account with its current balance.
type Account struct {
	ID       string
	Name     string
	Org      string
	Currency string
	Balance  decimal.Decimal
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	Org struct {
		Name string `json:"name"`
	} `json:"org"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// Client reads one SimpleFIN access URL.
type Client struct {
	http      *http.Client
	logger    *slog.Logger
	accessURL string
	accountID string
	retry     common.RetryOptions
}

// NewClient resolves the access URL, claiming the setup token when needed.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	accessURL := cfg.AccessURL
	if accessURL == "" && cfg.StateFile != "" {
		if state, err := LoadState(cfg.StateFile); err == nil {
			accessURL = state.AccessURL
		}
	}
	if accessURL == "" {
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: no SimpleFIN access; set simplefin.token to a setup token or simplefin.access_url", common.ErrInvalidConfig)
		}
		claimed, err := Claim(ctx, httpClient, cfg.Token)
		if err != nil {
			return nil, err
		}
		accessURL = claimed
		if cfg.StateFile != "" {
			if err := SaveState(cfg.StateFile, State{AccessURL: accessURL, ClaimedAt: time.Now().UTC()}); err != nil {
				slog.Warn("Failed to save SimpleFIN access", "file", cfg.StateFile, "error", err)
			}
		}
	}
	if _, err := url.Parse(accessURL); err != nil {
		return nil, fmt.Errorf("invalid SimpleFIN access URL: %w", err)
	}

	return &Client{
		http:      httpClient,
		accessURL: strings.TrimSuffix(accessURL, "/"),
		accountID: cfg.AccountID,
		retry:     common.DefaultRetryOptions(),
		logger:    slog.Default().With("component", "simplefin"),
	}, nil
}

// WithRetryOptions replaces the retry policy for failed requests.
func (c *Client) WithRetryOptions(opts common.RetryOptions) *Client {
	c.retry = opts
	return c
}

// GetTransactions fetches posted transactions between start and end, both
// inclusive, across every account the bridge shares (or the configured one).
func (c *Client) GetTransactions(ctx context.Context, start, end time.Time) ([]model.TransactionDraft, error) {
	if start.After(end) {
		return nil, common.Validationf("start date must be before end date")
	}
	start, end = model.Day(start), model.Day(end)

	q := url.Values{}
	q.Set("start-date", strconv.FormatInt(start.Unix(), 10))
	q.Set("end-date", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	set, err := c.accounts(ctx, q)
	if err != nil {
		return nil, err
	}

	var drafts []model.TransactionDraft
	fetched := 0
	for _, acct := range set.Accounts {
		if c.accountID != "" && acct.ID != c.accountID {
			continue
		}
		for _, tx := range acct.Transactions {
			fetched++
			draft, ok := c.toDraft(acct.ID, tx)
			if !ok || draft.Date.Before(start) || draft.Date.After(end) {
				continue
			}
			drafts = append(drafts, draft)
		}
	}
	c.logger.Info("Fetched SimpleFIN transactions", "fetched", fetched, "usable", len(drafts))
	return drafts, nil
}

// Accounts lists the accounts the bridge shares, without transactions.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	q := url.Values{}
	q.Set("balances-only", "1")
	set, err := c.accounts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(set.Accounts))
	for _, a := range set.Accounts {
		balance, err := decimal.NewFromString(a.Balance)
		if err != nil {
			balance = decimal.Zero
		}
		out = append(out, Account{ID: a.ID, Name: a.Name, Org: a.Org.Name, Currency: a.Currency, Balance: balance})
	}
	return out, nil
}

func (c *Client) accounts(ctx context.Context, q url.Values) (*accountSet, error) {
	var set accountSet
	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.accessURL+"/accounts?"+q.Encode(), nil)
		if err != nil {
			return &common.RetryableError{Err: err}
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to reach SimpleFIN: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("SimpleFIN returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusPaymentRequired {
				return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrUnauthorized, err)}
			}
			if resp.StatusCode < http.StatusInternalServerError {
				return &common.RetryableError{Err: err}
			}
			return err
		}
		set = accountSet{}
		if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to decode SimpleFIN response: %w", err)}
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}
	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported a problem", "message", msg)
	}
	return &set, nil
}

// toDraft converts a bridge transaction. Negative amounts leave the account.
// Pending and zero-amount transactions are dropped.
func (c *Client) toDraft(accountID string, tx transaction) (model.TransactionDraft, bool) {
	if tx.Pending || tx.Posted == 0 {
		return model.TransactionDraft{}, false
	}
	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		c.logger.Warn("Skipping SimpleFIN transaction with bad amount", "id", tx.ID, "amount", tx.Amount)
		return model.TransactionDraft{}, false
	}
	amount = amount.Round(2)
	if amount.IsZero() {
		return model.TransactionDraft{}, false
	}
	kind := model.TypeIncome
	if amount.IsNegative() {
		kind = model.TypeExpense
	}

	name := tx.Payee
	if name == "" {
		name = tx.Description
	}
	return model.TransactionDraft{
		Date:        model.Day(time.Unix(tx.Posted, 0).UTC()),
		Amount:      amount.Abs(),
		Merchant:    model.CleanMerchant(name),
		Description: tx.Description,
		Type:        kind,
		ExternalID:  accountID + ":" + tx.ID,
		Source:      model.SourceSimpleFIN,
	}, true
}
