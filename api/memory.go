package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

type createMemoryRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
	IsChat  bool     `json:"is_chat"`
}

// handleListMemory lists a board's memory, newest first.
func (s *Server) handleListMemory(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	p, err := pageParam(c)
	if err != nil {
		return err
	}
	isChat, err := boolParam(c, "is_chat")
	if err != nil {
		return err
	}

	items, err := s.driver.ListMemory(c.UserContext(), storage.MemoryFilter{
		BoardID: b.ID,
		IsChat:  isChat,
		Page:    p,
	})
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(items, p))
}

// handleCreateMemory appends a note or chat message to a board's memory.
// The source defaults to the caller.
func (s *Server) handleCreateMemory(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	var req createMemoryRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest("content is required")
	}

	a := currentActor(c)
	if req.Source == "" {
		req.Source = string(a.Type) + ":" + a.ID()
	}

	item := &mission.MemoryItem{
		ID:        uuid.NewString(),
		BoardID:   b.ID,
		Content:   req.Content,
		Tags:      req.Tags,
		Source:    req.Source,
		IsChat:    req.IsChat,
		CreatedAt: mission.Now(),
	}
	if err := s.driver.CreateMemory(c.UserContext(), item); err != nil {
		return err
	}

	s.publish(a, eventstream.EntityMemory, eventstream.VerbCreated, item.ID, b.OrgID, b.ID, item)
	return c.Status(fiber.StatusCreated).JSON(item)
}
