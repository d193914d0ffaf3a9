package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedCategory is used when nothing better is known.
const UncategorizedCategory = "Uncategorized"

// FallbackCategory is assigned by the offline text parser.
const FallbackCategory = "Other - Miscellaneous"

// DefaultCategories seeds categorization when the user has no history yet.
var DefaultCategories = []string{
	"Food & Dining - Groceries",
	"Food & Dining - Restaurants",
	"Food & Dining - Fast Food",
	"Transportation - Gas",
	"Transportation - Public Transit",
	"Transportation - Rideshare",
	"Housing - Rent/Mortgage",
	"Housing - Utilities",
	"Shopping - Clothing",
	"Shopping - Electronics",
	"Shopping - General",
	"Entertainment - Streaming",
	"Entertainment - Activities",
	"Healthcare - Medical",
	"Healthcare - Fitness",
	FallbackCategory,
}

// CategoryUsage describes how a category is used in transactions.
type CategoryUsage struct {
	Name  string
	Total decimal.Decimal
	Count int
}

// CategoryRule remembers which category a merchant belongs to.
type CategoryRule struct {
	LastUsed   *time.Time
	CreatedAt  time.Time
	Merchant   string
	Category   string
	Source     string
	Confidence float64
	UseCount   int
	ID         int64
	UserID     int64
}

// Rule sources.
const (
	RuleSourceUser = "user"
	RuleSourceAI   = "ai"
)
