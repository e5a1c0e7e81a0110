package api

import (
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

type createBoardRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// handleListBoards lists the boards visible to the caller: every board of
// a user's organization, or an agent's own board.
func (s *Server) handleListBoards(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	a := currentActor(c)
	if !a.IsUser() {
		b, err := s.board(c, a.BoardID)
		if err != nil {
			return err
		}
		return c.JSON(newListResponse([]*mission.Board{b}, p))
	}

	boards, err := s.driver.ListBoards(c.UserContext(), storage.BoardFilter{OrgID: a.OrgID, Page: p})
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(boards, p))
}

// handleCreateBoard creates a board in the caller's organization.
func (s *Server) handleCreateBoard(c *fiber.Ctx) error {
	a, err := requireUser(c)
	if err != nil {
		return err
	}

	var req createBoardRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return badRequest("name is required")
	}

	slug := slugify(req.Slug)
	if slug == "" {
		slug = slugify(req.Name)
	}
	if slug == "" {
		return badRequest("name must contain a letter or digit")
	}

	now := mission.Now()
	b := &mission.Board{
		ID:          uuid.NewString(),
		OrgID:       a.OrgID,
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.driver.CreateBoard(c.UserContext(), b); err != nil {
		return err
	}

	s.publish(a, eventstream.EntityBoard, eventstream.VerbCreated, b.ID, b.OrgID, b.ID, b)
	return c.Status(fiber.StatusCreated).JSON(b)
}

// handleGetBoard returns a single board.
func (s *Server) handleGetBoard(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	return c.JSON(b)
}

// slugify lowercases s and collapses every run of non-alphanumerics into a
// single dash.
func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
