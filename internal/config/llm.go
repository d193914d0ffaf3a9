package config

import (
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/spf13/viper"
)

// LoadLLMConfig reads llm.* settings.
func LoadLLMConfig(v *viper.Viper) llm.Config {
	return llm.Config{
		Provider:    v.GetString("llm.provider"),
		APIKey:      v.GetString("llm.api_key"),
		Model:       v.GetString("llm.model"),
		BaseURL:     v.GetString("llm.base_url"),
		RateLimit:   v.GetInt("llm.rate_limit"),
		CacheTTL:    v.GetDuration("llm.cache_ttl"),
		Timeout:     v.GetDuration("llm.timeout"),
		Temperature: v.GetFloat64("llm.temperature"),
	}
}
