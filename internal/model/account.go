package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// AccountType classifies where money is held.
type AccountType string

// Account types.
const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
)

// AccountTypes lists every valid account type.
var AccountTypes = []AccountType{AccountChecking, AccountSavings, AccountCreditCard, AccountInvestment}

// ParseAccountType validates a user-supplied type.
func ParseAccountType(s string) (AccountType, error) {
	for _, t := range AccountTypes {
		if string(t) == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	names := make([]string, len(AccountTypes))
	for i, t := range AccountTypes {
		names[i] = string(t)
	}
	return "", common.Validationf("invalid account type %q, must be one of: %s", s, strings.Join(names, ", "))
}

// Account holds a running balance.
type Account struct {
	CreatedAt   time.Time
	Balance     decimal.Decimal
	Name        string
	Type        AccountType
	Institution string
	Currency    string
	ID          int64
	UserID      int64
	IsActive    bool
}

// AccountUpdate lists the account fields that may change; nil means unchanged.
type AccountUpdate struct {
	Name        *string
	Type        *AccountType
	Institution *string
	IsActive    *bool
}

// Apply copies the set fields onto a.
func (u AccountUpdate) Apply(a *Account) {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Type != nil {
		a.Type = *u.Type
	}
	if u.Institution != nil {
		a.Institution = *u.Institution
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
}
