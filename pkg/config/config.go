// Package config loads and saves the mission control config.toml and layers
// it under environment variables and command line flags through viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/missioncontrol/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// CurrentV is the config file version this build reads and writes.
	CurrentV = 0
)

// Configer reads and writes config.toml inside a resolved .missioncontrol/
// directory.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the config directory (see dotdir.Manager.Target)
// and returns a Configer for the config.toml inside it. The file itself
// need not exist yet.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// GetTarget returns the config file path.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// ValidConfigKeys returns every supported key in TOML section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// LoadConfig reads config.toml. A missing file yields NewDefaultConfig;
// otherwise fields left empty in the file take their defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fillInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	fill(&cfg.Storage.Driver, d.Storage.Driver)
	fill(&cfg.API.Listen, d.API.Listen)
	fill(&cfg.Stream.PollInterval, d.Stream.PollInterval)
	fillInt(&cfg.Stream.WindowSize, d.Stream.WindowSize)
	fill(&cfg.Stream.Eviction, d.Stream.Eviction)
	fillInt(&cfg.Stream.MaxRetries, d.Stream.MaxRetries)
	fill(&cfg.EventStream.Provider, d.EventStream.Provider)
	fill(&cfg.EventStream.Topic, d.EventStream.Topic)
	fill(&cfg.Client.APITarget, d.Client.APITarget)
}

// SaveConfig writes cfg to config.toml with owner-only permissions since
// it may hold the JWT secret.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and saves it.
func (c *Configer) SetConfigValue(key string, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	k, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}

// PresetConfig returns the starting config for mc init --preset.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
	case "postgres":
		cfg.Storage.Driver = "postgres"
		cfg.Storage.PostgresDSN = "postgres://missioncontrol@localhost:5432/missioncontrol?sslmode=disable"
		cfg.EventStream.Provider = "kafka"
		cfg.EventStream.Brokers = []string{"localhost:9092"}
	case "edge":
		cfg.Storage.Driver = "libsql"
		cfg.Storage.LibSQLURL = "libsql://missioncontrol.turso.io"
	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
	return cfg, nil
}

func ValidPresetNames() []string {
	return []string{"local", "postgres", "edge"}
}

// ParseConfigTOML decodes config.toml contents. A version other than
// CurrentV is rejected; a missing version is accepted.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
