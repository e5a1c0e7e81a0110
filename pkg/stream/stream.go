// Package stream is the change-polling engine behind every mission control
// activity stream.
//
// A Stream repeatedly asks its Source for rows at or after a watermark,
// suppresses rows the connection already received, frames the rest as
// server-sent events and writes a keep-alive comment once per cycle.
// Watermark and dedup state live for one connection only; clients resume
// after a reconnect by passing the timestamp of the last event they
// received as "since".
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/papercomputeco/missioncontrol/pkg/logger"
	"github.com/papercomputeco/missioncontrol/pkg/sse"
)

const (
	// DefaultInterval is the delay between polls.
	DefaultInterval = 2 * time.Second

	// DefaultMaxRetries is how many consecutive failed polls are tolerated
	// before the stream is closed with an error event.
	DefaultMaxRetries = 3

	// ErrorEvent is the name of the terminal event written when the source
	// becomes unavailable.
	ErrorEvent = "error"
)

// Config parameterizes one stream.
type Config struct {
	// Event is the SSE event name of every data frame (e.g. "update").
	Event string

	// Interval between polls. Defaults to DefaultInterval.
	Interval time.Duration

	// WindowSize bounds the dedup window. Defaults to DefaultWindowSize.
	WindowSize int

	// Eviction selects the dedup window policy. Defaults to EvictClear.
	Eviction EvictionPolicy

	// Key derives dedup identities. Defaults to KeyByVersion.
	Key KeyFunc

	// MaxRetries is the number of consecutive failed polls tolerated. Zero
	// uses DefaultMaxRetries, a negative value closes on the first failure.
	MaxRetries int

	// Clock drives the poll cadence. Defaults to the wall clock.
	Clock clock.Clock

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Stats summarizes a finished Run.
type Stats struct {
	Polls      int
	Emitted    int
	Suppressed int
	Failures   int
	Watermark  time.Time
}

// Stream is a single-connection poll loop. Create one per request; a Stream
// must not be Run twice.
type Stream struct {
	source Source
	config Config
	logger *slog.Logger
	stats  Stats
}

// New validates cfg, fills in defaults and returns a Stream over source.
func New(source Source, cfg Config) (*Stream, error) {
	if source == nil {
		return nil, errors.New("stream source is required")
	}
	if cfg.Event == "" || strings.ContainsAny(cfg.Event, "\r\n") {
		return nil, sse.ErrInvalidEventName
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Eviction == "" {
		cfg.Eviction = EvictClear
	}
	if cfg.Key == nil {
		cfg.Key = KeyByVersion
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	// Validate the policy up front rather than on the first request.
	if _, err := NewWindow(cfg.Eviction, 1); err != nil {
		return nil, err
	}

	return &Stream{
		source: source,
		config: cfg,
		logger: cfg.Logger.With("event", cfg.Event),
	}, nil
}

// Stats returns counters for the last Run. Read it after Run returns.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Run polls until ctx is cancelled, the client stops reading (a write to w
// fails) or the source fails fatally. Client disconnects and cancellation
// return nil. A source failure writes a final error event and returns an
// error wrapping ErrSourceUnavailable.
//
// Cancellation is checked between polls; a query already in flight is
// allowed to finish.
func (s *Stream) Run(ctx context.Context, since time.Time, w io.Writer) error {
	enc := sse.NewWriter(w)
	mark := NewWatermark(since)
	defer func() { s.stats.Watermark = mark.Time() }()

	window, err := NewWindow(s.config.Eviction, s.config.WindowSize)
	if err != nil {
		return err
	}

	// Rows stamped exactly at the watermark come back on every poll because
	// since is inclusive. Their keys are held apart from the window so that
	// eviction cannot forget them.
	frontier := map[string]struct{}{}

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.stats.Polls++
		changes, err := s.source.Changes(ctx, mark.Time())
		switch {
		case err != nil && ctx.Err() != nil:
			return nil

		case err != nil:
			failures++
			s.stats.Failures++

			if IsFatal(err) || s.config.MaxRetries < 0 || failures > s.config.MaxRetries {
				s.logger.Error("closing stream after source failure",
					"error", err,
					"consecutive_failures", failures,
				)
				_ = enc.WriteEvent(ErrorEvent, errorPayload{Error: ErrSourceUnavailable.Error()})
				return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
			}

			s.logger.Warn("stream poll failed, retrying next cycle",
				"error", err,
				"consecutive_failures", failures,
			)

		default:
			failures = 0
			var gone bool
			frontier, gone = s.emit(enc, window, frontier, mark, changes)
			if gone {
				return nil
			}
		}

		if err := enc.Ping(); err != nil {
			s.logger.Debug("client went away", "error", err)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.config.Clock.After(s.config.Interval):
		}
	}
}

// emit writes every change the connection has not received and advances the
// watermark over the batch. frontier is consulted before window. It returns
// the frontier for the new watermark and true when the client went away.
func (s *Stream) emit(enc *sse.Writer, window Window, frontier map[string]struct{}, mark *Watermark, changes []Change) (map[string]struct{}, bool) {
	since := mark.Time()
	latest := since
	for _, change := range changes {
		if change.At.After(latest) {
			latest = change.At
		}
	}

	next := frontier
	if latest.After(since) {
		next = map[string]struct{}{}
	}

	for _, change := range changes {
		// Sources are asked for rows >= since; drop anything older so a
		// misbehaving source cannot replay history.
		if change.At.Before(since) {
			continue
		}

		key := s.config.Key(change)

		_, seen := frontier[key]
		if !seen {
			seen = window.Seen(key)
		}
		if change.At.Equal(latest) {
			next[key] = struct{}{}
		}

		if seen {
			s.stats.Suppressed++
			continue
		}

		if err := enc.WriteEvent(s.config.Event, change.Payload); err != nil {
			if errors.Is(err, sse.ErrEncoding) {
				s.logger.Error("dropping change with unencodable payload",
					"id", change.ID,
					"error", err,
				)
				continue
			}
			s.logger.Debug("client went away", "error", err)
			return next, true
		}
		s.stats.Emitted++
	}

	if mark.Advance(latest) {
		s.logger.Debug("watermark advanced", "watermark", latest, "frontier", len(next))
	}
	return next, false
}

type errorPayload struct {
	Error string `json:"error"`
}
