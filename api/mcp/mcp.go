// Package mcp provides an MCP (Model Context Protocol) server exposing
// read-only mission control tools to agents and users.
package mcp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

type Config struct {
	// Driver answers every tool call.
	Driver storage.Driver

	// Resolver authenticates each MCP request with the same credentials as
	// the HTTP API.
	Resolver *actor.Resolver

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config  Config
	handler http.Handler
}

// NewServer creates a new MCP server. Every request gets its own stateless
// mcp.Server whose tools are scoped to the authenticated caller.
func NewServer(c Config) (*Server, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Resolver == nil {
		return nil, errors.New("actor resolver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{config: c}

	streamable := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			a, ok := actor.FromContext(r.Context())
			if !ok {
				return nil
			}
			return s.serverFor(a)
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)
	s.handler = s.authenticate(streamable)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// serverFor builds an MCP server whose tools act on behalf of a.
func (s *Server) serverFor(a *actor.Actor) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "missioncontrol",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	t := &tools{driver: s.config.Driver, actor: a}

	mcp.AddTool(server, &mcp.Tool{
		Name:        listAgentsToolName,
		Description: listAgentsDescription,
	}, t.handleListAgents)

	mcp.AddTool(server, &mcp.Tool{
		Name:        listPendingApprovalsToolName,
		Description: listPendingApprovalsDescription,
	}, t.handleListPendingApprovals)

	mcp.AddTool(server, &mcp.Tool{
		Name:        recallBoardMemoryToolName,
		Description: recallBoardMemoryDescription,
	}, t.handleRecallBoardMemory)

	return server
}

// authenticate resolves the caller from the request headers and rejects
// the request with a JSON error before it reaches the MCP handler.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := s.config.Resolver.Resolve(r.Context(), actor.CredentialsFrom(r.Header.Get))
		if err != nil {
			status, msg := http.StatusInternalServerError, "internal server error"
			if errors.Is(err, actor.ErrUnauthorized) {
				status, msg = http.StatusUnauthorized, "unauthorized"
			} else {
				s.config.Logger.Error("mcp: resolving actor", "error", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
			return
		}

		next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
	})
}
