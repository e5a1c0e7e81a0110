package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config is the contents of .missioncontrol/config.toml.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Auth        AuthConfig        `toml:"auth"`
	Stream      StreamConfig      `toml:"stream"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Client      ClientConfig      `toml:"client"`
	Gateway     GatewayConfig     `toml:"gateway"`
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres", "libsql" or "memory".
	Driver          string `toml:"driver,omitempty"`
	SQLitePath      string `toml:"sqlite_path,omitempty"`
	PostgresDSN     string `toml:"postgres_dsn,omitempty"`
	LibSQLURL       string `toml:"libsql_url,omitempty"`
	LibSQLAuthToken string `toml:"libsql_auth_token,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AuthConfig holds the user token settings.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret,omitempty"`
	JWTIssuer string `toml:"jwt_issuer,omitempty"`
}

// StreamConfig tunes the activity stream poll loop.
type StreamConfig struct {
	// PollInterval is a Go duration string, e.g. "2s".
	PollInterval string `toml:"poll_interval,omitempty"`
	WindowSize   int    `toml:"window_size,omitempty"`
	Eviction     string `toml:"eviction,omitempty"`
	MaxRetries   int    `toml:"max_retries,omitempty"`
}

// EventStreamConfig configures change event publishing.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. mc tail). APITarget is a full URL (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
	Token     string `toml:"token,omitempty"`
}

// GatewayConfig points mc gateway at an agent gateway's WebSocket RPC
// endpoint.
type GatewayConfig struct {
	URL   string `toml:"url,omitempty"`
	Token string `toml:"token,omitempty"`
}

// configKey binds a dotted key name to a getter and setter on *Config.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

func stringKey(name string, field func(c *Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set:  func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func enumKey(name string, allowed []string, field func(c *Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if !slices.Contains(allowed, v) {
				return fmt.Errorf("invalid value for %s: %q (available: %s)", name, v, strings.Join(allowed, ", "))
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys lists every supported key in TOML section order.
var configKeys = []configKey{
	enumKey("storage.driver", StorageDrivers, func(c *Config) *string { return &c.Storage.Driver }),
	stringKey("storage.sqlite_path", func(c *Config) *string { return &c.Storage.SQLitePath }),
	stringKey("storage.postgres_dsn", func(c *Config) *string { return &c.Storage.PostgresDSN }),
	stringKey("storage.libsql_url", func(c *Config) *string { return &c.Storage.LibSQLURL }),
	stringKey("storage.libsql_auth_token", func(c *Config) *string { return &c.Storage.LibSQLAuthToken }),
	stringKey("api.listen", func(c *Config) *string { return &c.API.Listen }),
	stringKey("auth.jwt_secret", func(c *Config) *string { return &c.Auth.JWTSecret }),
	stringKey("auth.jwt_issuer", func(c *Config) *string { return &c.Auth.JWTIssuer }),
	{
		name: "stream.poll_interval",
		get:  func(c *Config) string { return c.Stream.PollInterval },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid value for stream.poll_interval: %q", v)
			}
			c.Stream.PollInterval = v
			return nil
		},
	},
	intKey("stream.window_size", func(c *Config) *int { return &c.Stream.WindowSize }),
	enumKey("stream.eviction", []string{"clear", "lru"}, func(c *Config) *string { return &c.Stream.Eviction }),
	intKey("stream.max_retries", func(c *Config) *int { return &c.Stream.MaxRetries }),
	enumKey("eventstream.provider", []string{"nop", "kafka"}, func(c *Config) *string { return &c.EventStream.Provider }),
	{
		name: "eventstream.brokers",
		get:  func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set:  func(c *Config, v string) error { c.EventStream.Brokers = SplitList(v); return nil },
	},
	stringKey("eventstream.topic", func(c *Config) *string { return &c.EventStream.Topic }),
	stringKey("client.api_target", func(c *Config) *string { return &c.Client.APITarget }),
	stringKey("client.token", func(c *Config) *string { return &c.Client.Token }),
	stringKey("gateway.url", func(c *Config) *string { return &c.Gateway.URL }),
	stringKey("gateway.token", func(c *Config) *string { return &c.Gateway.Token }),
}

func lookupKey(name string) (configKey, bool) {
	i := slices.IndexFunc(configKeys, func(k configKey) bool { return k.name == name })
	if i < 0 {
		return configKey{}, false
	}
	return configKeys[i], true
}

// StorageDrivers lists the accepted storage.driver values.
var StorageDrivers = []string{"sqlite", "postgres", "libsql", "memory"}

// IsValidStorageDriver reports whether name is a known storage driver.
func IsValidStorageDriver(name string) bool {
	return slices.Contains(StorageDrivers, name)
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
