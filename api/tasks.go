package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

type createTaskRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	Priority        string `json:"priority"`
	AssignedAgentID string `json:"assigned_agent_id"`
}

type updateTaskRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Status          *string `json:"status"`
	Priority        *string `json:"priority"`
	AssignedAgentID *string `json:"assigned_agent_id"`
}

type createCommentRequest struct {
	Message string `json:"message"`
}

// task loads a task of board b.
func (s *Server) task(c *fiber.Ctx, b *mission.Board, id string) (*mission.Task, error) {
	t, err := s.driver.GetTask(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if t.BoardID != b.ID {
		return nil, storage.NotFoundError{Kind: "task", ID: id}
	}
	return t, nil
}

// handleListTasks lists a board's tasks, oldest first.
func (s *Server) handleListTasks(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	status := c.Query("status")
	if status != "" && !mission.IsValidTaskStatus(status) {
		return badRequest("invalid status")
	}

	tasks, err := s.driver.ListTasks(c.UserContext(), storage.TaskFilter{BoardID: b.ID, Status: status, Page: p})
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(tasks, p))
}

// handleCreateTask adds a task to a board. Status defaults to inbox.
func (s *Server) handleCreateTask(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return badRequest("title is required")
	}
	if req.Status == "" {
		req.Status = mission.TaskStatusInbox
	}
	if !mission.IsValidTaskStatus(req.Status) {
		return badRequest("invalid status")
	}

	now := mission.Now()
	t := &mission.Task{
		ID:              uuid.NewString(),
		BoardID:         b.ID,
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		AssignedAgentID: req.AssignedAgentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.driver.CreateTask(c.UserContext(), t); err != nil {
		return err
	}

	a := currentActor(c)
	s.record(c, taskActivity(a, b, t, mission.EventTypeTaskCreated, "created "+t.Title))
	s.publish(a, eventstream.EntityTask, eventstream.VerbCreated, t.ID, b.OrgID, b.ID, t)
	return c.Status(fiber.StatusCreated).JSON(t)
}

// handleUpdateTask applies a partial update to a task.
func (s *Server) handleUpdateTask(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	t, err := s.task(c, b, c.Params("task_id"))
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return badRequest("title must not be empty")
		}
		t.Title = title
	}
	if req.Status != nil {
		if !mission.IsValidTaskStatus(*req.Status) {
			return badRequest("invalid status")
		}
		t.Status = *req.Status
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.AssignedAgentID != nil {
		t.AssignedAgentID = *req.AssignedAgentID
	}

	t.UpdatedAt = mission.Now()
	if err := s.driver.UpdateTask(c.UserContext(), t); err != nil {
		return err
	}

	a := currentActor(c)
	s.record(c, taskActivity(a, b, t, mission.EventTypeTaskUpdated, t.Title+" is "+t.Status))
	s.publish(a, eventstream.EntityTask, eventstream.VerbUpdated, t.ID, b.OrgID, b.ID, t)
	return c.JSON(t)
}

// handleListComments lists a task's comments, newest first.
func (s *Server) handleListComments(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	t, err := s.task(c, b, c.Params("task_id"))
	if err != nil {
		return err
	}
	p, err := pageParam(c)
	if err != nil {
		return err
	}

	comments, err := s.driver.ListActivity(c.UserContext(), storage.ActivityFilter{
		OrgID:     b.OrgID,
		BoardID:   b.ID,
		TaskID:    t.ID,
		EventType: mission.EventTypeTaskComment,
		Page:      p,
	})
	if err != nil {
		return err
	}
	return c.JSON(newListResponse(comments, p))
}

// handleCreateComment comments on a task. Comments are activity events and
// show up on the task comment stream.
func (s *Server) handleCreateComment(c *fiber.Ctx) error {
	b, err := s.board(c, c.Params("board_id"))
	if err != nil {
		return err
	}
	t, err := s.task(c, b, c.Params("task_id"))
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest("message is required")
	}

	a := currentActor(c)
	comment := taskActivity(a, b, t, mission.EventTypeTaskComment, req.Message)
	if err := s.driver.CreateActivity(c.UserContext(), comment); err != nil {
		return err
	}

	s.publish(a, eventstream.EntityComment, eventstream.VerbCreated, comment.ID, b.OrgID, b.ID, comment)
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func taskActivity(a *actor.Actor, b *mission.Board, t *mission.Task, eventType, message string) *mission.ActivityEvent {
	return &mission.ActivityEvent{
		ID:        uuid.NewString(),
		OrgID:     b.OrgID,
		BoardID:   b.ID,
		EventType: eventType,
		Message:   message,
		TaskID:    t.ID,
		AgentID:   a.AgentID,
		CreatedAt: mission.Now(),
	}
}
