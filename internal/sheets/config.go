// Package sheets exports monthly reports to Google Sheets.
package sheets

import (
	"errors"
	"time"
)

// Config holds Google Sheets credentials and write settings. Exactly one of
// ServiceAccountPath or the OAuth2 triple (ClientID, ClientSecret,
// RefreshToken) must be set.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns the write settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Spice Ledger",
		TimeZone:         "America/New_York",
		BatchSize:        500,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

func (c Config) hasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Validate checks authentication and batching settings.
func (c Config) Validate() error {
	switch {
	case !c.hasOAuth() && c.ServiceAccountPath == "":
		return errors.New("no Google Sheets authentication configured: set a service account path or OAuth2 client ID, secret and refresh token")
	case c.hasOAuth() && c.ServiceAccountPath != "":
		return errors.New("multiple Google Sheets authentication methods configured; use either OAuth2 or a service account")
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.RetryAttempts < 0:
		return errors.New("retry attempts cannot be negative")
	case c.RetryDelay < 0:
		return errors.New("retry delay cannot be negative")
	}
	return nil
}
