package model

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
)

// Tag is a free-form label attached to transactions.
type Tag struct {
	CreatedAt   time.Time
	Name        string
	Description string
	Color       string
	ID          int64
	UserID      int64
}

// NormalizeTagName trims a tag name and rejects characters the storage layer uses as separators.
func NormalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.Validationf("tag name cannot be empty")
	}
	if strings.Contains(name, ",") {
		return "", common.Validationf("tag name %q cannot contain commas", name)
	}
	return name, nil
}

// TagStat summarises usage of one tag.
type TagStat struct {
	Name  string
	Total decimal.Decimal
	Count int
	TagID int64
}
