package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix viper uses for automatic environment lookups.
const EnvPrefix = "SPICE"

// legacyEnv maps config keys to the unprefixed variables the original tool read.
var legacyEnv = map[string][]string{
	"database.path":      {"DATABASE_PATH"},
	"llm.api_key":        {"ANTHROPIC_API_KEY", "OPENAI_API_KEY"},
	"llm.model":          {"AI_MODEL"},
	"ledger.currency":    {"DEFAULT_CURRENCY"},
	"user":               {"USER_ID"},
	"session.token":      {"SPICE_SESSION"},
	"plaid.client_id":    {"PLAID_CLIENT_ID"},
	"plaid.secret":       {"PLAID_SECRET"},
	"plaid.environment":  {"PLAID_ENV"},
	"plaid.access_token": {"PLAID_ACCESS_TOKEN"},
	"simplefin.token":    {"SIMPLEFIN_TOKEN"},
}

// LoadDotEnv loads .env files without overriding variables already set.
// Missing files are skipped; the working directory wins over the config dir.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join(ConfigDir(), ".env")}
	}

	for _, p := range paths {
		if err := godotenv.Load(ExpandPath(p)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// Bind registers defaults and environment bindings on v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", filepath.Join(DataDir(), "ledger.db"))
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.rate_limit", 50)
	v.SetDefault("llm.cache_ttl", 15*time.Minute)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("session.ttl", 720*time.Hour)
	v.SetDefault("plaid.environment", "sandbox")

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}

// DatabasePath returns the expanded database location.
func DatabasePath(v *viper.Viper) string {
	return ExpandPath(v.GetString("database.path"))
}

// SessionFile is where `spice user login` stores the active token.
func SessionFile() string {
	return filepath.Join(DataDir(), "session.token")
}
