package config

import (
	"github.com/Veraticus/spice-ledger/internal/plaid"
	"github.com/spf13/viper"
)

// LoadPlaidConfig reads plaid.* settings. Callers validate what they need:
// institution search works without an access token.
func LoadPlaidConfig(v *viper.Viper) plaid.Config {
	return plaid.Config{
		ClientID:    v.GetString("plaid.client_id"),
		Secret:      v.GetString("plaid.secret"),
		Environment: v.GetString("plaid.environment"),
		AccessToken: v.GetString("plaid.access_token"),
		AccountID:   v.GetString("plaid.account_id"),
	}
}
