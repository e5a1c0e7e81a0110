package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

type createAgentRequest struct {
	BoardID string `json:"board_id"`
	Name    string `json:"name"`
}

// CreateAgentResponse carries the plaintext agent token. It is returned
// exactly once; only its digest is stored.
type CreateAgentResponse struct {
	Agent *mission.Agent `json:"agent"`
	Token string         `json:"token"`
}

type updateAgentRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

type heartbeatRequest struct {
	Status string `json:"status"`
}

// agent loads id and checks the caller may see it.
func (s *Server) agent(c *fiber.Ctx, id string) (*mission.Agent, error) {
	ag, err := s.driver.GetAgent(c.UserContext(), id)
	if err != nil {
		return nil, err
	}

	a := currentActor(c)
	if ag.OrgID != a.OrgID || (!a.IsUser() && ag.BoardID != a.BoardID) {
		return nil, storage.NotFoundError{Kind: "agent", ID: id}
	}
	return ag, nil
}

// handleListAgents lists agents of the caller's organization, filtered by
// board_id and status.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	a := currentActor(c)
	filter := storage.AgentFilter{OrgID: a.OrgID, Status: c.Query("status"), Page: p}
	if filter.Status != "" && !mission.IsValidAgentStatus(filter.Status) {
		return badRequest("invalid status")
	}

	boardID, err := s.boardScope(c)
	if err != nil {
		return err
	}
	filter.BoardID = boardID

	agents, err := s.driver.ListAgents(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(agents, p))
}

// handleCreateAgent provisions an agent on a board and returns its token.
func (s *Server) handleCreateAgent(c *fiber.Ctx) error {
	a, err := requireUser(c)
	if err != nil {
		return err
	}

	var req createAgentRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return badRequest("name is required")
	}
	if req.BoardID == "" {
		return badRequest("board_id is required")
	}

	b, err := s.board(c, req.BoardID)
	if err != nil {
		return err
	}

	token, hash, err := actor.NewAgentToken()
	if err != nil {
		return err
	}

	now := mission.Now()
	ag := &mission.Agent{
		ID:        uuid.NewString(),
		OrgID:     b.OrgID,
		BoardID:   b.ID,
		Name:      req.Name,
		Status:    mission.AgentStatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
		TokenHash: hash,
	}
	if err := s.driver.CreateAgent(c.UserContext(), ag); err != nil {
		return err
	}

	s.publish(a, eventstream.EntityAgent, eventstream.VerbCreated, ag.ID, ag.OrgID, ag.BoardID, ag)
	return c.Status(fiber.StatusCreated).JSON(CreateAgentResponse{Agent: ag, Token: token})
}

// handleGetAgent returns a single agent.
func (s *Server) handleGetAgent(c *fiber.Ctx) error {
	ag, err := s.agent(c, c.Params("agent_id"))
	if err != nil {
		return err
	}
	return c.JSON(ag)
}

// handleUpdateAgent renames an agent or changes its status. Agents may
// only update themselves.
func (s *Server) handleUpdateAgent(c *fiber.Ctx) error {
	a := currentActor(c)
	ag, err := s.agent(c, c.Params("agent_id"))
	if err != nil {
		return err
	}
	if !a.IsUser() && ag.ID != a.AgentID {
		return fmt.Errorf("%w: agents may only update themselves", actor.ErrForbidden)
	}

	var req updateAgentRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return badRequest("name must not be empty")
		}
		ag.Name = name
	}

	wentOnline := false
	if req.Status != nil {
		if !mission.IsValidAgentStatus(*req.Status) {
			return badRequest("invalid status")
		}
		wentOnline = *req.Status == mission.AgentStatusOnline && ag.Status != mission.AgentStatusOnline
		ag.Status = *req.Status
	}

	return s.saveAgent(c, a, ag, wentOnline)
}

// handleAgentHeartbeat marks the calling agent as seen. The status defaults
// to online.
func (s *Server) handleAgentHeartbeat(c *fiber.Ctx) error {
	a := currentActor(c)
	if a.Type != actor.TypeAgent {
		return fmt.Errorf("%w: heartbeats are sent by agents", actor.ErrForbidden)
	}

	var req heartbeatRequest
	if len(c.Body()) > 0 {
		if err := decode(c, &req); err != nil {
			return err
		}
	}
	if req.Status == "" {
		req.Status = mission.AgentStatusOnline
	}
	if !mission.IsValidAgentStatus(req.Status) {
		return badRequest("invalid status")
	}

	ag, err := s.agent(c, a.AgentID)
	if err != nil {
		return err
	}

	wentOnline := req.Status == mission.AgentStatusOnline && ag.Status != mission.AgentStatusOnline
	now := mission.Now()
	ag.Status = req.Status
	ag.LastSeenAt = &now

	return s.saveAgent(c, a, ag, wentOnline)
}

func (s *Server) saveAgent(c *fiber.Ctx, a *actor.Actor, ag *mission.Agent, wentOnline bool) error {
	ag.UpdatedAt = mission.Now()
	if err := s.driver.UpdateAgent(c.UserContext(), ag); err != nil {
		return err
	}

	if wentOnline {
		s.record(c, &mission.ActivityEvent{
			ID:        uuid.NewString(),
			OrgID:     ag.OrgID,
			BoardID:   ag.BoardID,
			EventType: mission.EventTypeAgentOnline,
			Message:   ag.Name + " is online",
			AgentID:   ag.ID,
			CreatedAt: ag.UpdatedAt,
		})
	}

	s.publish(a, eventstream.EntityAgent, eventstream.VerbUpdated, ag.ID, ag.OrgID, ag.BoardID, ag)
	return c.JSON(ag)
}
