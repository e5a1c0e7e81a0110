package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// handleListActivity lists the caller's activity feed, newest first,
// filtered by board_id and event_type.
func (s *Server) handleListActivity(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	a := currentActor(c)
	filter := storage.ActivityFilter{OrgID: a.OrgID, EventType: c.Query("event_type"), Page: p}

	boardID, err := s.boardScope(c)
	if err != nil {
		return err
	}
	filter.BoardID = boardID

	events, err := s.driver.ListActivity(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(events, p))
}
