package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// PurchaseStatus is the lifecycle state of a planned purchase.
type PurchaseStatus string

// Purchase statuses.
const (
	PurchasePlanned   PurchaseStatus = "planned"
	PurchasePurchased PurchaseStatus = "purchased"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// ParsePurchaseStatus validates a purchase status name.
func ParsePurchaseStatus(s string) (PurchaseStatus, error) {
	switch st := PurchaseStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PurchasePlanned, PurchasePurchased, PurchaseCancelled:
		return st, nil
	default:
		return "", common.Validationf("status must be one of: planned, purchased, cancelled")
	}
}

// Purchase priority bounds. Lower numbers are more important.
const (
	MinPurchasePriority     = 1
	MaxPurchasePriority     = 5
	DefaultPurchasePriority = 3
)

var priorityLabels = map[int]string{
	1: "Critical/Necessity",
	2: "High Priority",
	3: "Moderate",
	4: "Low Priority",
	5: "Want/Luxury",
}

// PriorityLabel returns the human name of a purchase priority.
func PriorityLabel(priority int) string {
	if label, ok := priorityLabels[priority]; ok {
		return label
	}
	return "Unknown"
}

// PurchaseSort orders purchase listings.
type PurchaseSort string

// Sort orders.
const (
	SortByPriority PurchaseSort = "priority"
	SortByDeadline PurchaseSort = "deadline"
	SortByCost     PurchaseSort = "cost"
	SortByCreated  PurchaseSort = "created"
)

// ParsePurchaseSort validates a sort order name.
func ParsePurchaseSort(s string) (PurchaseSort, error) {
	switch sort := PurchaseSort(strings.ToLower(strings.TrimSpace(s))); sort {
	case SortByPriority, SortByDeadline, SortByCost, SortByCreated:
		return sort, nil
	default:
		return "", common.Validationf("sort must be one of: priority, deadline, cost, created")
	}
}

// Purchase is something the user plans to buy.
type Purchase struct {
	CreatedAt     time.Time
	Deadline      *time.Time
	PurchasedAt   *time.Time
	ActualCost    *decimal.Decimal
	TransactionID *int64
	EstimatedCost decimal.Decimal
	Name          string
	Description   string
	Category      string
	Notes         string
	URL           string
	Status        PurchaseStatus
	Priority      int
	ID            int64
	UserID        int64
}

// PurchaseFilter narrows a purchase listing.
type PurchaseFilter struct {
	Status   PurchaseStatus
	Priority int
	SortBy   PurchaseSort
}

// PurchaseUpdate lists the purchase fields that may change; nil means unchanged.
type PurchaseUpdate struct {
	Deadline      *time.Time
	EstimatedCost *decimal.Decimal
	Name          *string
	Description   *string
	Category      *string
	Notes         *string
	URL           *string
	Priority      *int
}

// Apply copies the set fields onto p.
func (u PurchaseUpdate) Apply(p *Purchase) {
	if u.Deadline != nil {
		d := Day(*u.Deadline)
		p.Deadline = &d
	}
	if u.EstimatedCost != nil {
		p.EstimatedCost = *u.EstimatedCost
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	if u.URL != nil {
		p.URL = *u.URL
	}
	if u.Priority != nil {
		p.Priority = *u.Priority
	}
}
