// Package api provides the mission control HTTP API: board CRUD, agent and
// approval management, board memory, tasks, the activity feed and the SSE
// activity streams.
package api

import (
	"time"

	"github.com/juju/clock"

	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Stream configures every activity stream the server opens.
	Stream StreamConfig
}

// StreamConfig holds the poll loop settings shared by all stream endpoints.
// Zero values fall back to the stream package defaults.
type StreamConfig struct {
	Interval   time.Duration
	WindowSize int
	Eviction   stream.EvictionPolicy
	MaxRetries int

	// Clock drives poll cadence; tests substitute a test clock.
	Clock clock.Clock
}
