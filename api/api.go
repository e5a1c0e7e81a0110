package api

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/api/mcp"
	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/logger"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

// EventQueue accepts change events for asynchronous publishing. The
// worker.Pool satisfies it.
type EventQueue interface {
	Enqueue(event *eventstream.ChangeEvent) bool
}

// Server is the mission control API server.
type Server struct {
	config   Config
	driver   storage.Driver
	resolver *actor.Resolver
	events   EventQueue
	logger   *slog.Logger
	app      *fiber.App

	// ctx outlives individual requests and is cancelled on Shutdown so
	// open streams end before the listener is closed.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new API server. events may be nil, in which case
// change events are discarded.
func NewServer(config Config, driver storage.Driver, resolver *actor.Resolver, events EventQueue, log *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if resolver == nil {
		return nil, errors.New("actor resolver is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if events == nil {
		events = discardQueue{}
	}
	if config.Stream.Eviction != "" {
		if _, err := stream.NewWindow(config.Stream.Eviction, 1); err != nil {
			return nil, err
		}
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Driver:   driver,
		Resolver: resolver,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		driver:   driver,
		resolver: resolver,
		events:   events,
		logger:   log,
		app:      app,
		ctx:      ctx,
		cancel:   cancel,
	}

	app.Get("/ping", s.handlePing)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	v1 := app.Group("/v1", s.authenticate)

	v1.Get("/boards", s.handleListBoards)
	v1.Post("/boards", s.handleCreateBoard)
	v1.Get("/boards/:board_id", s.handleGetBoard)

	// Static agent routes must be registered before /agents/:agent_id.
	v1.Get("/agents/stream", s.handleAgentStream)
	v1.Post("/agents/heartbeat", s.handleAgentHeartbeat)
	v1.Get("/agents", s.handleListAgents)
	v1.Post("/agents", s.handleCreateAgent)
	v1.Get("/agents/:agent_id", s.handleGetAgent)
	v1.Patch("/agents/:agent_id", s.handleUpdateAgent)

	v1.Get("/boards/:board_id/approvals/stream", s.handleApprovalStream)
	v1.Get("/boards/:board_id/approvals", s.handleListApprovals)
	v1.Post("/boards/:board_id/approvals", s.handleCreateApproval)
	v1.Patch("/boards/:board_id/approvals/:approval_id", s.handleResolveApproval)

	v1.Get("/boards/:board_id/memory/stream", s.handleMemoryStream)
	v1.Get("/boards/:board_id/memory", s.handleListMemory)
	v1.Post("/boards/:board_id/memory", s.handleCreateMemory)

	v1.Get("/boards/:board_id/tasks", s.handleListTasks)
	v1.Post("/boards/:board_id/tasks", s.handleCreateTask)
	v1.Patch("/boards/:board_id/tasks/:task_id", s.handleUpdateTask)
	v1.Get("/boards/:board_id/tasks/:task_id/comments", s.handleListComments)
	v1.Post("/boards/:board_id/tasks/:task_id/comments", s.handleCreateComment)

	v1.Get("/activity/task-comments/stream", s.handleCommentStream)
	v1.Get("/activity", s.handleListActivity)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Listener serves the API on an existing listener.
func (s *Server) Listener(ln net.Listener) error {
	s.logger.Info("starting API server", "listen", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown ends every open stream, then gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

type discardQueue struct{}

func (discardQueue) Enqueue(*eventstream.ChangeEvent) bool { return true }
