package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

const actorLocal = "actor"

// authenticate resolves the caller and rejects the request before any
// handler (or stream) runs when credentials are missing or invalid.
func (s *Server) authenticate(c *fiber.Ctx) error {
	a, err := s.resolver.Resolve(c.UserContext(), actor.CredentialsFrom(func(key string) string {
		return c.Get(key)
	}))
	if err != nil {
		return err
	}

	c.Locals(actorLocal, a)
	c.SetUserContext(actor.WithActor(c.UserContext(), a))
	return c.Next()
}

func currentActor(c *fiber.Ctx) *actor.Actor {
	a, _ := c.Locals(actorLocal).(*actor.Actor)
	return a
}

// requireUser rejects agent callers from user-only operations.
func requireUser(c *fiber.Ctx) (*actor.Actor, error) {
	a := currentActor(c)
	if !a.IsUser() {
		return nil, fmt.Errorf("%w: users only", actor.ErrForbidden)
	}
	return a, nil
}

// board loads id and checks the caller may access it. Boards the caller
// cannot see are reported as missing.
func (s *Server) board(c *fiber.Ctx, id string) (*mission.Board, error) {
	b, err := s.driver.GetBoard(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessBoard(currentActor(c), b) {
		return nil, storage.NotFoundError{Kind: "board", ID: id}
	}
	return b, nil
}

// boardScope returns the board a list or stream is narrowed to: an agent's
// own board, or the optional board_id query parameter for users. An empty
// result means every board of the caller's organization.
func (s *Server) boardScope(c *fiber.Ctx) (string, error) {
	a := currentActor(c)
	if !a.IsUser() {
		return a.BoardID, nil
	}

	boardID := c.Query("board_id")
	if boardID == "" {
		return "", nil
	}
	if _, err := s.board(c, boardID); err != nil {
		return "", err
	}
	return boardID, nil
}

// source describes the caller of the current request for change events.
func source(a *actor.Actor, orgID, boardID string) eventstream.EventSource {
	return eventstream.EventSource{
		OrgID:     orgID,
		BoardID:   boardID,
		ActorType: string(a.Type),
		ActorID:   a.ID(),
	}
}

// publish enqueues a change event. A full queue drops the event; the pool
// logs the drop.
func (s *Server) publish(a *actor.Actor, entity, verb, id, orgID, boardID string, payload any) {
	s.events.Enqueue(eventstream.NewChangeEvent(entity, verb, id, source(a, orgID, boardID), payload))
}

// record appends an activity event for a mutation that already succeeded.
// Failures are logged only.
func (s *Server) record(c *fiber.Ctx, event *mission.ActivityEvent) {
	if err := s.driver.CreateActivity(c.UserContext(), event); err != nil {
		s.logger.Error("failed to record activity",
			"board_id", event.BoardID,
			"event_type", event.EventType,
			"error", err,
		)
	}
}
