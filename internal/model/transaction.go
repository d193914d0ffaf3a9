package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement.
type TransactionType string

// Transaction types.
const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// ParseTransactionType validates a user-supplied type.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return t, nil
	default:
		return "", common.Validationf("invalid transaction type %q, must be expense, income or transfer", s)
	}
}

// Transaction sources.
const (
	SourceManual    = "manual"
	SourceAI        = "ai"
	SourceCSV       = "csv"
	SourceOFX       = "ofx"
	SourcePlaid     = "plaid"
	SourceSimpleFIN = "simplefin"
)

// Transaction represents a single movement of money on one account.
// Amounts are always non-negative; Type gives the direction.
type Transaction struct {
	Date           time.Time
	CreatedAt      time.Time
	ToAccountID    *int64 // set on the outgoing leg of a transfer
	TransferPairID *int64 // the other leg of a transfer
	Amount         decimal.Decimal
	Merchant       string
	Category       string
	Description    string
	Notes          string
	Type           TransactionType
	Hash           string
	ExternalID     string
	Source         string
	ImportBatch    string
	Tags           []string
	ID             int64
	UserID         int64
	AccountID      int64
}

// IsTransferLeg reports whether the transaction is one half of a transfer.
func (t *Transaction) IsTransferLeg() bool {
	return t.Type == TypeTransfer
}

// IsOutgoing reports whether a transfer leg moves money out of its account.
func (t *Transaction) IsOutgoing() bool {
	return t.Type == TypeTransfer && t.ToAccountID != nil
}

// BalanceEffect returns the signed change this transaction makes to its account.
func (t *Transaction) BalanceEffect() decimal.Decimal {
	switch t.Type {
	case TypeIncome:
		return t.Amount
	case TypeExpense:
		return t.Amount.Neg()
	case TypeTransfer:
		if t.IsOutgoing() {
			return t.Amount.Neg()
		}
		return t.Amount
	}
	return decimal.Zero
}

// DisplayMerchant returns the merchant or a placeholder.
func (t *Transaction) DisplayMerchant() string {
	if t.Merchant != "" {
		return t.Merchant
	}
	if t.Description != "" {
		return t.Description
	}
	return "-"
}

// GenerateHash creates a stable fingerprint for duplicate detection on import.
func GenerateHash(accountID int64, date time.Time, amount decimal.Decimal, merchant, externalID string) string {
	data := fmt.Sprintf("%d:%s:%s:%s:%s",
		accountID,
		FormatDate(date),
		amount.StringFixed(2),
		strings.ToLower(strings.TrimSpace(merchant)),
		externalID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// TransactionDraft is an unsaved transaction, produced by manual entry or an importer.
type TransactionDraft struct {
	Date        time.Time
	Amount      decimal.Decimal
	Merchant    string
	Category    string
	Description string
	Notes       string
	Type        TransactionType
	ExternalID  string
	Source      string
	AccountID   int64
}

// Validate checks the fields every saved transaction needs.
func (d *TransactionDraft) Validate() error {
	if !d.Amount.IsPositive() {
		return common.Validationf("amount must be greater than zero")
	}
	switch d.Type {
	case TypeExpense, TypeIncome:
	case TypeTransfer:
		return common.Validationf("transfers must be created with the transfer command")
	default:
		return common.Validationf("invalid transaction type %q", d.Type)
	}
	if d.AccountID == 0 {
		return common.Validationf("account is required")
	}
	return nil
}

// TransactionUpdate lists the transaction fields that may change; nil means unchanged.
type TransactionUpdate struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	Merchant    *string
	Category    *string
	Description *string
	Notes       *string
	Type        *TransactionType
	AccountID   *int64
}

// Empty reports whether no field is set.
func (u TransactionUpdate) Empty() bool {
	return u.Date == nil && u.Amount == nil && u.Merchant == nil && u.Category == nil &&
		u.Description == nil && u.Notes == nil && u.Type == nil && u.AccountID == nil
}

// ChangesBalance reports whether applying u may move money between or within accounts.
func (u TransactionUpdate) ChangesBalance() bool {
	return u.Amount != nil || u.Type != nil || u.AccountID != nil
}

// Apply copies the set fields onto t.
func (u TransactionUpdate) Apply(t *Transaction) {
	if u.Date != nil {
		t.Date = Day(*u.Date)
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Merchant != nil {
		t.Merchant = *u.Merchant
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.AccountID != nil {
		t.AccountID = *u.AccountID
	}
}

// TransactionFilter narrows a transaction search. Zero values mean "any".
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	AccountID *int64
	Text      string
	Category  string
	Type      TransactionType
	Tags      []string
	Limit     int
	Offset    int
}
