package config

import (
	"path/filepath"

	"github.com/Veraticus/spice-ledger/internal/simplefin"
	"github.com/spf13/viper"
)

// SimpleFINStateFile is where a claimed access URL is kept by default.
func SimpleFINStateFile() string {
	return filepath.Join(DataDir(), "simplefin.json")
}

// LoadSimpleFINConfig reads simplefin.* settings.
func LoadSimpleFINConfig(v *viper.Viper) simplefin.Config {
	state := v.GetString("simplefin.state_file")
	if state == "" {
		state = SimpleFINStateFile()
	}
	return simplefin.Config{
		AccessURL: v.GetString("simplefin.access_url"),
		Token:     v.GetString("simplefin.token"),
		StateFile: ExpandPath(state),
		AccountID: v.GetString("simplefin.account_id"),
		Timeout:   v.GetDuration("simplefin.timeout"),
	}
}
