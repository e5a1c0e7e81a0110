package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8080"

	defaultPollInterval = "2s"
	defaultWindowSize   = 2000
	defaultEviction     = "clear"
	defaultMaxRetries   = 3

	defaultEventProvider = "nop"
	defaultEventTopic    = "missioncontrol.changes"

	defaultClientAPITarget = "http://localhost:8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Stream: StreamConfig{
			PollInterval: defaultPollInterval,
			WindowSize:   defaultWindowSize,
			Eviction:     defaultEviction,
			MaxRetries:   defaultMaxRetries,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventProvider,
			Topic:    defaultEventTopic,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
