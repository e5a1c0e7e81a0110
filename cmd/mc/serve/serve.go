// Package servecmder provides the serve command that runs the mission control
// API server together with its change event publisher.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/missioncontrol/api"
	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/config"
	"github.com/papercomputeco/missioncontrol/pkg/dotdir"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream/kafka"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream/nop"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream/worker"
	"github.com/papercomputeco/missioncontrol/pkg/logger"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/inmemory"
	"github.com/papercomputeco/missioncontrol/pkg/storage/postgres"
	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

// shutdownTimeout bounds the graceful shutdown of the API server.
const shutdownTimeout = 10 * time.Second

// boundFlags are the registry flags serve binds into viper.
var boundFlags = []string{
	config.FlagListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagLibSQLURL,
	config.FlagLibSQLToken,
	config.FlagJWTSecret,
	config.FlagJWTIssuer,
	config.FlagPollInterval,
	config.FlagWindowSize,
	config.FlagEviction,
	config.FlagMaxRetries,
	config.FlagEventProvider,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}

type serveCommander struct {
	configDir string
	debug     bool
	logFormat string
	logFile   string
	service   string

	// Flag targets. Effective values are read back from viper so config
	// file and MC_* environment values apply when a flag is not set.
	listen        string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	libsqlURL     string
	libsqlToken   string
	jwtSecret     string
	jwtIssuer     string
	pollInterval  string
	windowSize    int
	eviction      string
	maxRetries    int
	eventProvider string
	eventBrokers  string
	eventTopic    string

	settings *config.Config
	logger   *slog.Logger
}

const serveLongDesc string = `Run the Mission Control API server.

Serves the REST API, the Server-Sent Events activity streams, and the MCP
endpoint. Mutations are published as change events through the configured
event stream provider.

Settings are read from flags, MC_* environment variables, and config.toml in
the .missioncontrol/ directory, in that order of precedence.

Examples:
  mc serve --jwt-secret s3cret
  mc serve --storage-driver postgres --postgres postgres://localhost/mc
  mc serve --eventstream-provider kafka --eventstream-brokers localhost:9092`

const serveShortDesc string = "Run the Mission Control API server"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, boundFlags)

			cmder.settings, err = config.FromViper(v)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.service = cmd.Root().Name()

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	fs := config.Registry
	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagLibSQLURL, &cmder.libsqlURL)
	config.AddStringFlag(cmd, fs, config.FlagLibSQLToken, &cmder.libsqlToken)
	config.AddStringFlag(cmd, fs, config.FlagJWTSecret, &cmder.jwtSecret)
	config.AddStringFlag(cmd, fs, config.FlagJWTIssuer, &cmder.jwtIssuer)
	config.AddStringFlag(cmd, fs, config.FlagPollInterval, &cmder.pollInterval)
	config.AddIntFlag(cmd, fs, config.FlagWindowSize, &cmder.windowSize)
	config.AddStringFlag(cmd, fs, config.FlagEviction, &cmder.eviction)
	config.AddIntFlag(cmd, fs, config.FlagMaxRetries, &cmder.maxRetries)
	config.AddStringFlag(cmd, fs, config.FlagEventProvider, &cmder.eventProvider)
	config.AddStringFlag(cmd, fs, config.FlagEventBrokers, &cmder.eventBrokers)
	config.AddStringFlag(cmd, fs, config.FlagEventTopic, &cmder.eventTopic)

	cmd.Flags().StringVar(&cmder.logFormat, "log-format", string(logger.FormatPretty), "Console log format: pretty, text, or json")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	if c.settings.Auth.JWTSecret == "" {
		return errors.New("a JWT secret is required: pass --jwt-secret or set auth.jwt_secret")
	}

	streamConfig, err := c.streamConfig()
	if err != nil {
		return err
	}

	driver, err := c.openDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	resolver, err := actor.NewResolver(actor.ResolverConfig{
		JWTSecret: []byte(c.settings.Auth.JWTSecret),
		JWTIssuer: c.settings.Auth.JWTIssuer,
		Agents:    driver,
	})
	if err != nil {
		return fmt.Errorf("creating actor resolver: %w", err)
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating publisher pool: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			c.logger.Warn("closing publisher pool", "error", err)
		}
		if p, ok := publisher.(*nop.Publisher); ok {
			c.logger.Debug("change events discarded", "count", p.Published())
		}
	}()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.settings.API.Listen,
		Stream:     streamConfig,
	}, driver, resolver, pool, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down API server")

		done := make(chan error, 1)
		go func() { done <- server.Shutdown() }()

		select {
		case err := <-done:
			return err
		case <-time.After(shutdownTimeout):
			return errors.New("timed out shutting down API server")
		}
	})

	return g.Wait()
}

// newLogger builds the service logger. With --log-file, records are also
// appended as JSON to the file.
func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	format, err := logger.ParseFormat(c.logFormat)
	if err != nil {
		return nil, nil, err
	}

	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(format),
		logger.WithWriter(os.Stderr),
		logger.WithService(c.service),
	)

	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
		logger.WithService(c.service),
	)

	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

func (c *serveCommander) streamConfig() (api.StreamConfig, error) {
	s := c.settings.Stream

	interval, err := time.ParseDuration(s.PollInterval)
	if err != nil || interval <= 0 {
		return api.StreamConfig{}, fmt.Errorf("invalid stream poll interval %q", s.PollInterval)
	}

	return api.StreamConfig{
		Interval:   interval,
		WindowSize: s.WindowSize,
		Eviction:   stream.EvictionPolicy(s.Eviction),
		MaxRetries: s.MaxRetries,
	}, nil
}

// openDriver opens the configured storage driver. sqlite and libsql are
// handled by the build-specific openSQLite and openLibSQL.
func (c *serveCommander) openDriver(ctx context.Context) (storage.Driver, error) {
	s := c.settings.Storage

	switch s.Driver {
	case "memory":
		c.logger.Warn("using in-memory storage; data is lost on exit")
		return inmemory.NewDriver(), nil

	case "postgres":
		if s.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires --postgres or storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, s.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	case "libsql":
		if s.LibSQLURL == "" {
			return nil, errors.New("libsql storage requires --libsql-url or storage.libsql_url")
		}
		return c.openLibSQL(ctx, s.LibSQLURL, s.LibSQLAuthToken)

	case "sqlite", "":
		path := s.SQLitePath
		if path == "" {
			var err error
			path, err = dotdir.NewManager().DatabasePath(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving SQLite path: %w", err)
			}
		}
		return c.openSQLite(ctx, path)

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", s.Driver)
	}
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	e := c.settings.EventStream

	switch e.Provider {
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: e.Brokers,
			Topic:   e.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing change events to kafka", "brokers", e.Brokers, "topic", e.Topic)
		return p, nil

	case "nop", "":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown eventstream provider: %q", e.Provider)
	}
}
