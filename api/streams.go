package api

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/sse"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

// Stream event names.
const (
	eventAgentUpdate = "update"
	eventApproval    = "approval"
	eventMemory      = "memory"
	eventComment     = "comment"
)

type approvalFrame struct {
	Approval *mission.Approval `json:"approval"`
}

type memoryFrame struct {
	Memory *mission.MemoryItem `json:"memory"`
}

type commentFrame struct {
	Comment *mission.ActivityEvent `json:"comment"`
}

// changeSource adapts a storage change query into a stream.Source. The
// query's Since is replaced by the stream watermark on every poll.
func changeSource[T any](
	fetch func(context.Context, storage.ChangeQuery) ([]*T, error),
	q storage.ChangeQuery,
	toChange func(*T) stream.Change,
) stream.Source {
	return stream.SourceFunc(func(ctx context.Context, since time.Time) ([]stream.Change, error) {
		q.Since = since
		rows, err := fetch(ctx, q)
		if err != nil {
			if errors.Is(err, storage.ErrClosed) {
				return nil, stream.Fatal(err)
			}
			return nil, err
		}

		out := make([]stream.Change, 0, len(rows))
		for _, row := range rows {
			out = append(out, toChange(row))
		}
		return out, nil
	})
}

func agentChanges(d storage.AgentStore, q storage.ChangeQuery) stream.Source {
	return changeSource(d.AgentsChangedSince, q, func(a *mission.Agent) stream.Change {
		return stream.Change{ID: a.ID, At: a.UpdatedAt, Payload: a}
	})
}

func approvalChanges(d storage.ApprovalStore, q storage.ChangeQuery) stream.Source {
	return changeSource(d.ApprovalsChangedSince, q, func(a *mission.Approval) stream.Change {
		return stream.Change{ID: a.ID, At: a.UpdatedAt, Payload: approvalFrame{Approval: a}}
	})
}

func memoryChanges(d storage.MemoryStore, q storage.ChangeQuery) stream.Source {
	return changeSource(d.MemoryChangedSince, q, func(m *mission.MemoryItem) stream.Change {
		return stream.Change{ID: m.ID, At: m.CreatedAt, Payload: memoryFrame{Memory: m}}
	})
}

func commentChanges(d storage.ActivityStore, q storage.ChangeQuery) stream.Source {
	q.EventType = mission.EventTypeTaskComment
	return changeSource(d.ActivityChangedSince, q, func(e *mission.ActivityEvent) stream.Change {
		return stream.Change{ID: e.ID, At: e.CreatedAt, Payload: commentFrame{Comment: e}}
	})
}

// handleAgentStream streams agent changes of the caller's organization,
// optionally narrowed to one board. Agents only see their own board.
func (s *Server) handleAgentStream(c *fiber.Ctx) error {
	a := currentActor(c)
	q := storage.ChangeQuery{OrgID: a.OrgID}

	boardID, err := s.boardScope(c)
	if err != nil {
		return err
	}
	q.BoardID = boardID

	return s.serveStream(c, eventAgentUpdate, agentChanges(s.driver, q), sinceParam(c))
}

// handleApprovalStream streams approval changes of one board.
func (s *Server) handleApprovalStream(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	q := storage.ChangeQuery{OrgID: b.OrgID, BoardID: b.ID}
	return s.serveStream(c, eventApproval, approvalChanges(s.driver, q), sinceParam(c))
}

// handleMemoryStream streams new memory items of one board, optionally
// only chat messages (is_chat=true) or only notes (is_chat=false).
func (s *Server) handleMemoryStream(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	q := storage.ChangeQuery{OrgID: b.OrgID, BoardID: b.ID, IsChat: lenientBoolParam(c, "is_chat")}
	return s.serveStream(c, eventMemory, memoryChanges(s.driver, q), sinceParam(c))
}

// handleCommentStream streams task comments of the caller's organization,
// optionally narrowed to one board.
func (s *Server) handleCommentStream(c *fiber.Ctx) error {
	a := currentActor(c)
	q := storage.ChangeQuery{OrgID: a.OrgID}

	boardID, err := s.boardScope(c)
	if err != nil {
		return err
	}
	q.BoardID = boardID

	return s.serveStream(c, eventComment, commentChanges(s.driver, q), sinceParam(c))
}

// serveStream runs a stream for the lifetime of the connection.
//
// The fiber context is recycled once the handler returns, so the loop runs
// on the server's context and learns about a departed client from the
// failed write that follows. io.Pipe gives per-frame backpressure: each
// write blocks until fasthttp has pushed the previous chunk to the socket.
func (s *Server) serveStream(c *fiber.Ctx, event string, src stream.Source, since time.Time) error {
	log := s.logger.With(
		"stream", event,
		"path", c.Path(),
		"actor", currentActor(c).ID(),
	)

	st, err := stream.New(src, stream.Config{
		Event:      event,
		Interval:   s.config.Stream.Interval,
		WindowSize: s.config.Stream.WindowSize,
		Eviction:   s.config.Stream.Eviction,
		MaxRetries: s.config.Stream.MaxRetries,
		Clock:      s.config.Stream.Clock,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	for k, v := range sse.Headers() {
		c.Set(k, v)
	}

	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()

		log.Debug("stream opened", "since", since)
		err := st.Run(s.ctx, since, pw)
		stats := st.Stats()
		log.Debug("stream closed",
			"polls", stats.Polls,
			"emitted", stats.Emitted,
			"suppressed", stats.Suppressed,
			"watermark", stats.Watermark,
			"error", err,
		)
	}()

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}
