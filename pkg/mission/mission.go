// Package mission defines the domain records mission control coordinates:
// boards, the agents working them, approvals, board memory, tasks and the
// activity feed.
package mission

import (
	"encoding/json"
	"time"
)

// Agent statuses.
const (
	AgentStatusProvisioning = "provisioning"
	AgentStatusOnline       = "online"
	AgentStatusBusy         = "busy"
	AgentStatusOffline      = "offline"
)

// Approval statuses.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Task statuses.
const (
	TaskStatusInbox      = "inbox"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

// Activity event types.
const (
	EventTypeTaskComment  = "task.comment"
	EventTypeTaskCreated  = "task.created"
	EventTypeTaskUpdated  = "task.updated"
	EventTypeAgentOnline  = "agent.online"
	EventTypeApprovalMade = "approval.resolved"
)

// Board is a tenant-scoped task/goal tracker.
type Board struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Agent is an autonomous worker attached to a board.
type Agent struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	BoardID    string     `json:"board_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// TokenHash is the digest of the agent's access token.
	TokenHash string `json:"-"`
}

// Approval is an action an agent wants a human to sign off on.
type Approval struct {
	ID         string          `json:"id"`
	BoardID    string          `json:"board_id"`
	AgentID    string          `json:"agent_id,omitempty"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Confidence float64         `json:"confidence"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MemoryItem is an append-only note in a board's shared memory. Chat
// messages are memory items with IsChat set.
type MemoryItem struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Source    string    `json:"source,omitempty"`
	IsChat    bool      `json:"is_chat"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a unit of work on a board.
type Task struct {
	ID              string    `json:"id"`
	BoardID         string    `json:"board_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority,omitempty"`
	AssignedAgentID string    `json:"assigned_agent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ActivityEvent is an entry in a board's activity feed. Task comments are
// activity events with EventType EventTypeTaskComment.
type ActivityEvent struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	BoardID   string    `json:"board_id"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	TaskID    string    `json:"task_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValidAgentStatus reports whether s is a known agent status.
func IsValidAgentStatus(s string) bool {
	switch s {
	case AgentStatusProvisioning, AgentStatusOnline, AgentStatusBusy, AgentStatusOffline:
		return true
	}
	return false
}

// IsValidApprovalStatus reports whether s is a known approval status.
func IsValidApprovalStatus(s string) bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusInbox, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	}
	return false
}
