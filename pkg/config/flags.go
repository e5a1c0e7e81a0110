package config

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a command line flag once so every command that offers it
// (listen, jwt-secret, api-target, ...) uses the same name, shorthand,
// default and help text.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet indexes Flags by registry key.
type FlagSet map[string]Flag

// Registry keys.
const (
	FlagListen        = "listen"
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgres      = "postgres"
	FlagLibSQLURL     = "libsql-url"
	FlagLibSQLToken   = "libsql-auth-token"
	FlagJWTSecret     = "jwt-secret"
	FlagJWTIssuer     = "jwt-issuer"
	FlagPollInterval  = "poll-interval"
	FlagWindowSize    = "window-size"
	FlagEviction      = "eviction"
	FlagMaxRetries    = "max-retries"
	FlagEventProvider = "eventstream-provider"
	FlagEventBrokers  = "eventstream-brokers"
	FlagEventTopic    = "eventstream-topic"
	FlagAPITarget     = "api-target"
	FlagClientToken   = "token"
	FlagGatewayURL    = "gateway-url"
	FlagGatewayToken  = "gateway-token"
)

// Registry is the FlagSet shared by every mc command.
var Registry = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagStorageDriver: {Name: "storage-driver", ViperKey: "storage.driver", Description: "Storage driver (sqlite, postgres, libsql, memory)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .missioncontrol/missioncontrol.sqlite)"},
	FlagPostgres:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagLibSQLURL:     {Name: "libsql-url", ViperKey: "storage.libsql_url", Description: "libSQL database URL"},
	FlagLibSQLToken:   {Name: "libsql-auth-token", ViperKey: "storage.libsql_auth_token", Description: "libSQL auth token"},
	FlagJWTSecret:     {Name: "jwt-secret", ViperKey: "auth.jwt_secret", Description: "Secret used to sign and verify user tokens"},
	FlagJWTIssuer:     {Name: "jwt-issuer", ViperKey: "auth.jwt_issuer", Description: "Required issuer of user tokens"},
	FlagPollInterval:  {Name: "poll-interval", ViperKey: "stream.poll_interval", Description: "Delay between activity stream polls"},
	FlagWindowSize:    {Name: "window-size", ViperKey: "stream.window_size", Description: "Capacity of each stream's dedup window"},
	FlagEviction:      {Name: "eviction", ViperKey: "stream.eviction", Description: "Dedup window eviction policy (clear, lru)"},
	FlagMaxRetries:    {Name: "max-retries", ViperKey: "stream.max_retries", Description: "Consecutive failed polls tolerated before a stream closes"},
	FlagEventProvider: {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Change event publisher (nop, kafka)"},
	FlagEventBrokers:  {Name: "eventstream-brokers", ViperKey: "eventstream.brokers", Description: "Comma-separated Kafka broker addresses"},
	FlagEventTopic:    {Name: "eventstream-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for change events"},
	FlagAPITarget:     {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Mission control API server URL"},
	FlagClientToken:   {Name: "token", Shorthand: "t", ViperKey: "client.token", Description: "Bearer or agent token used by client commands"},
	FlagGatewayURL:    {Name: "url", ViperKey: "gateway.url", Description: "Agent gateway WebSocket URL, e.g. wss://gateway.example.com/rpc"},
	FlagGatewayToken:  {Name: "token", Shorthand: "t", ViperKey: "gateway.token", Description: "Agent gateway operator token"},
}

// AddStringFlag registers the flag fs[key] on cmd, defaulting to the
// config default of its viper key.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	f, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, f.Name, f.Shorthand, configDefault(f.ViperKey), f.Description)
}

// AddIntFlag is AddStringFlag for int flags.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	f, ok := fs[key]
	if !ok {
		return
	}
	def, _ := strconv.Atoi(configDefault(f.ViperKey))
	cmd.Flags().IntVarP(target, f.Name, f.Shorthand, def, f.Description)
}

// BindRegisteredFlags binds the flags named by keys into v so a flag set on
// the command line beats env, file and default values. Call it from PreRunE
// after InitViper.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		if pf := cmd.Flags().Lookup(f.Name); pf != nil {
			_ = v.BindPFlag(f.ViperKey, pf)
		}
	}
}

func configDefault(viperKey string) string {
	k, ok := lookupKey(viperKey)
	if !ok {
		return ""
	}
	return k.get(NewDefaultConfig())
}
