package api

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

type createApprovalRequest struct {
	AgentID    string          `json:"agent_id"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload"`
	Confidence float64         `json:"confidence"`
}

type resolveApprovalRequest struct {
	Status string `json:"status"`
}

// handleListApprovals lists a board's approvals, newest first.
func (s *Server) handleListApprovals(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	status := c.Query("status")
	if status != "" && !mission.IsValidApprovalStatus(status) {
		return badRequest("invalid status")
	}

	approvals, err := s.driver.ListApprovals(c.UserContext(), storage.ApprovalFilter{
		BoardID: b.ID,
		Status:  status,
		Page:    p,
	})
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(approvals, p))
}

// handleCreateApproval files a pending approval. Agents file approvals as
// themselves.
func (s *Server) handleCreateApproval(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	var req createApprovalRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	req.ActionType = strings.TrimSpace(req.ActionType)
	if req.ActionType == "" {
		return badRequest("action_type is required")
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return badRequest("confidence must be between 0 and 1")
	}

	a := currentActor(c)
	switch {
	case !a.IsUser():
		req.AgentID = a.AgentID
	case req.AgentID != "":
		ag, err := s.agent(c, req.AgentID)
		if err != nil && !storage.IsNotFound(err) {
			return err
		}
		if ag == nil || ag.BoardID != b.ID {
			return badRequest("agent_id must name an agent of this board")
		}
	}

	now := mission.Now()
	ap := &mission.Approval{
		ID:         uuid.NewString(),
		BoardID:    b.ID,
		AgentID:    req.AgentID,
		ActionType: req.ActionType,
		Payload:    req.Payload,
		Confidence: req.Confidence,
		Status:     mission.ApprovalStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.driver.CreateApproval(c.UserContext(), ap); err != nil {
		return err
	}

	s.publish(a, eventstream.EntityApproval, eventstream.VerbCreated, ap.ID, b.OrgID, b.ID, ap)
	return c.Status(fiber.StatusCreated).JSON(ap)
}

// handleResolveApproval approves or rejects a pending approval. Only users
// resolve approvals, and only once: concurrent resolutions race in the
// driver and the loser gets 409.
func (s *Server) handleResolveApproval(c *fiber.Ctx) error {
	a, err := requireUser(c)
	if err != nil {
		return err
	}
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	var req resolveApprovalRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.Status != mission.ApprovalStatusApproved && req.Status != mission.ApprovalStatusRejected {
		return badRequest("status must be approved or rejected")
	}

	id := c.Params("approval_id")
	ap, err := s.driver.GetApproval(c.UserContext(), id)
	if err != nil {
		return err
	}
	if ap.BoardID != b.ID {
		return storage.NotFoundError{Kind: "approval", ID: id}
	}
	if ap.Status != mission.ApprovalStatusPending {
		return fiber.NewError(fiber.StatusConflict, "approval already resolved")
	}

	now := mission.Now()
	ap.Status = req.Status
	ap.ResolvedAt = &now
	ap.UpdatedAt = now
	if err := s.driver.ResolveApproval(c.UserContext(), ap); err != nil {
		return err
	}

	s.record(c, &mission.ActivityEvent{
		ID:        uuid.NewString(),
		OrgID:     b.OrgID,
		BoardID:   b.ID,
		EventType: mission.EventTypeApprovalMade,
		Message:   ap.ActionType + " " + ap.Status,
		AgentID:   ap.AgentID,
		CreatedAt: now,
	})
	s.publish(a, eventstream.EntityApproval, eventstream.VerbUpdated, ap.ID, b.OrgID, b.ID, ap)
	return c.JSON(ap)
}
