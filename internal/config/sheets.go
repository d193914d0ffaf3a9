package config

import (
	"os"
	"path/filepath"

	"github.com/Veraticus/spice-ledger/internal/sheets"
	"github.com/spf13/viper"
)

// SheetsTokenFile is where `spice report sheets auth` saves the OAuth token.
func SheetsTokenFile() string {
	return filepath.Join(DataDir(), "sheets-token.json")
}

// ReadSheetsConfig reads Google Sheets settings from viper, falling back to
// GOOGLE_SHEETS_* variables and then to a saved OAuth token. It does not
// validate.
func ReadSheetsConfig(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	cfg.ServiceAccountPath = ExpandPath(firstNonEmpty(v.GetString("sheets.service_account_path"), os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")))
	cfg.ClientID = firstNonEmpty(v.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	cfg.ClientSecret = firstNonEmpty(v.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	cfg.RefreshToken = firstNonEmpty(v.GetString("sheets.refresh_token"), os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	cfg.SpreadsheetID = firstNonEmpty(v.GetString("sheets.spreadsheet_id"), os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	if name := firstNonEmpty(v.GetString("sheets.spreadsheet_name"), os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME")); name != "" {
		cfg.SpreadsheetName = name
	}
	if tz := v.GetString("sheets.timezone"); tz != "" {
		cfg.TimeZone = tz
	}

	if cfg.RefreshToken == "" && cfg.ClientID != "" && cfg.ServiceAccountPath == "" {
		tokenFile := ExpandPath(firstNonEmpty(v.GetString("sheets.token_file"), SheetsTokenFile()))
		if token, err := sheets.LoadToken(tokenFile); err == nil {
			cfg.RefreshToken = token.RefreshToken
		}
	}
	return cfg
}

// LoadSheetsConfig reads and validates Google Sheets settings.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	cfg := ReadSheetsConfig(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
