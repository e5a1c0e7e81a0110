package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/missioncontrol/pkg/dotdir"
)

// EnvPrefix prefixes environment overrides: api.listen is read from
// MC_API_LISTEN.
const EnvPrefix = "MC"

// InitViper layers, from highest to lowest precedence: flags bound later
// with BindRegisteredFlags, MC_* environment variables, config.toml in the
// resolved directory, and NewDefaultConfig.
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v.SetConfigName(strings.TrimSuffix(configFile, ".toml"))
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers NewDefaultConfig under every config key.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for _, k := range configKeys {
		v.SetDefault(k.name, k.get(d))
	}
}

// FromViper reads the effective Config out of v. Every non-empty value is
// validated the same way mc config set validates it. List values may arrive
// as a TOML array or a comma-separated flag or env string.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{Version: v.GetInt("version")}

	for _, k := range configKeys {
		var raw string
		switch v.Get(k.name).(type) {
		case []any, []string:
			raw = strings.Join(v.GetStringSlice(k.name), ",")
		default:
			raw = v.GetString(k.name)
		}

		if raw == "" {
			continue
		}
		if err := k.set(cfg, raw); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}
