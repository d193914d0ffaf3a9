// Package plaid pulls bank transactions from the Plaid API.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
)

const (
	pageSize      = int32(500)
	rateLimitCode = "RATE_LIMIT_EXCEEDED"
)

var environments = map[string]plaid.Environment{
	"sandbox":    plaid.Sandbox,
	"production": plaid.Production,
}

// Config holds Plaid API credentials. AccountID optionally restricts
// fetches to one Plaid account.
type Config struct {
	ClientID    string
	Secret      string
	Environment string
	AccessToken string
	AccountID   string
}

func (c Config) validateCredentials() error {
	if c.ClientID == "" {
		return errors.New("plaid client ID is required")
	}
	if c.Secret == "" {
		return errors.New("plaid secret is required")
	}
	if c.Environment == "" {
		return errors.New("plaid environment is required")
	}
	if _, ok := environments[c.Environment]; !ok {
		return fmt.Errorf("invalid Plaid environment %q: must be sandbox or production", c.Environment)
	}
	return nil
}

// Validate ensures everything needed to fetch transactions is present.
func (c Config) Validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if c.AccessToken == "" {
		return errors.New("plaid access token is required")
	}
	return nil
}

// Client fetches transactions for one linked item.
type Client struct {
	api         *plaid.APIClient
	logger      *slog.Logger
	retry       common.RetryOptions
	accessToken string
	accountID   string
}

// NewClient creates a Plaid client. The access token may be empty for
// institution searches.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validateCredentials(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(environments[cfg.Environment])

	return &Client{
		api:         plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		accountID:   cfg.AccountID,
		logger:      slog.Default().With("component", "plaid"),
		retry:       common.DefaultRetryOptions(),
	}, nil
}

// WithRetryOptions replaces the retry policy for rate-limited calls.
func (c *Client) WithRetryOptions(opts common.RetryOptions) *Client {
	c.retry = opts
	return c
}

// GetTransactions fetches every posted transaction between start and end,
// paging through the results. Rate-limited pages are retried with backoff.
func (c *Client) GetTransactions(ctx context.Context, start, end time.Time) ([]model.TransactionDraft, error) {
	if start.After(end) {
		return nil, common.Validationf("start date must be before end date")
	}
	if c.accessToken == "" {
		return nil, errors.New("plaid access token is required")
	}

	c.logger.Info("Fetching transactions from Plaid", "start", model.FormatDate(start), "end", model.FormatDate(end))

	var all []plaid.Transaction
	for offset := int32(0); ; offset += pageSize {
		var page []plaid.Transaction
		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(c.accessToken, model.FormatDate(start), model.FormatDate(end))
			options := plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			}
			if c.accountID != "" {
				options.AccountIds = &[]string{c.accountID}
			}
			request.SetOptions(options)

			resp, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.apiError("fetch transactions", err)
			}
			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction page", "count", len(page), "offset", offset, "total", resp.GetTotalTransactions())
			return nil
		}, c.retry)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < int(pageSize) {
			break
		}
	}

	drafts := make([]model.TransactionDraft, 0, len(all))
	for _, pt := range all {
		if draft, ok := c.toDraft(pt); ok {
			drafts = append(drafts, draft)
		}
	}
	c.logger.Info("Fetched Plaid transactions", "fetched", len(all), "usable", len(drafts))
	return drafts, nil
}

// toDraft converts a Plaid transaction. Plaid reports money leaving the
// account as a positive amount. Pending and zero-amount transactions are
// dropped.
func (c *Client) toDraft(pt plaid.Transaction) (model.TransactionDraft, bool) {
	if pt.GetPending() {
		return model.TransactionDraft{}, false
	}
	date, err := time.Parse(time.DateOnly, pt.GetDate())
	if err != nil {
		c.logger.Warn("Skipping Plaid transaction with bad date", "id", pt.GetTransactionId(), "date", pt.GetDate())
		return model.TransactionDraft{}, false
	}

	amount := decimal.NewFromFloat(pt.GetAmount()).Round(2)
	if amount.IsZero() {
		return model.TransactionDraft{}, false
	}
	kind := model.TypeExpense
	if amount.IsNegative() {
		kind = model.TypeIncome
	}

	name := pt.GetMerchantName()
	if name == "" {
		name = pt.GetName()
	}

	return model.TransactionDraft{
		Date:        date,
		Amount:      amount.Abs(),
		Merchant:    model.CleanMerchant(name),
		Description: pt.GetName(),
		Type:        kind,
		ExternalID:  pt.GetTransactionId(),
		Source:      model.SourcePlaid,
	}, true
}

// apiError turns rate limits into retryable errors and flattens Plaid error
// bodies into the message.
func (c *Client) apiError(action string, err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if plaidErr.ErrorCode == rateLimitCode {
		c.logger.Warn("Plaid rate limit hit, retrying", "action", action)
		return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrRateLimit, plaidErr.ErrorMessage), Retryable: true}
	}
	return &common.RetryableError{
		Err:       fmt.Errorf("plaid API error: %s - %s", plaidErr.ErrorCode, plaidErr.ErrorMessage),
		Retryable: false,
	}
}

// Institution is a bank Plaid can connect to.
type Institution struct {
	ID                   string
	Name                 string
	OAuth                bool
	SupportsTransactions bool
}

// SearchInstitutions finds US institutions by name.
func (c *Client) SearchInstitutions(ctx context.Context, query string, limit int) ([]Institution, error) {
	request := plaid.NewInstitutionsSearchRequest(query, []plaid.CountryCode{plaid.COUNTRYCODE_US})
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	request.SetOptions(plaid.InstitutionsSearchRequestOptions{IncludeOptionalMetadata: plaid.PtrBool(true)})

	resp, _, err := c.api.PlaidApi.InstitutionsSearch(ctx).InstitutionsSearchRequest(*request).Execute()
	if err != nil {
		return nil, c.apiError("search institutions", err)
	}

	var out []Institution
	for _, inst := range resp.GetInstitutions() {
		if len(out) == limit {
			break
		}
		item := Institution{ID: inst.GetInstitutionId(), Name: inst.GetName(), OAuth: inst.GetOauth()}
		for _, product := range inst.GetProducts() {
			if product == plaid.PRODUCTS_TRANSACTIONS {
				item.SupportsTransactions = true
				break
			}
		}
		out = append(out, item)
	}
	return out, nil
}
