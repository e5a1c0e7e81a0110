// Package storage defines persistence for mission control records and the
// change queries the activity streams poll.
package storage

import (
	"context"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
)

// Driver is the full persistence surface. Implementations must be safe for
// concurrent use: every open stream polls through the same Driver.
type Driver interface {
	BoardStore
	AgentStore
	ApprovalStore
	MemoryStore
	TaskStore
	ActivityStore

	// Close releases the underlying connection. Calls made after Close
	// return ErrClosed.
	Close() error
}

// BoardStore persists boards.
type BoardStore interface {
	CreateBoard(ctx context.Context, board *mission.Board) error
	GetBoard(ctx context.Context, id string) (*mission.Board, error)
	ListBoards(ctx context.Context, filter BoardFilter) ([]*mission.Board, error)
}

// AgentStore persists agents.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent *mission.Agent) error
	GetAgent(ctx context.Context, id string) (*mission.Agent, error)

	// AgentByTokenHash resolves an agent from the digest of its access token.
	AgentByTokenHash(ctx context.Context, hash string) (*mission.Agent, error)

	ListAgents(ctx context.Context, filter AgentFilter) ([]*mission.Agent, error)

	// UpdateAgent overwrites the mutable fields (name, status, last_seen_at,
	// updated_at) of an existing agent.
	UpdateAgent(ctx context.Context, agent *mission.Agent) error

	// AgentsChangedSince returns agents with updated_at >= q.Since, scoped
	// by q.OrgID and optionally q.BoardID, ordered by updated_at then id.
	AgentsChangedSince(ctx context.Context, q ChangeQuery) ([]*mission.Agent, error)
}

// ApprovalStore persists approvals.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, approval *mission.Approval) error
	GetApproval(ctx context.Context, id string) (*mission.Approval, error)
	ListApprovals(ctx context.Context, filter ApprovalFilter) ([]*mission.Approval, error)

	// ResolveApproval sets status, resolved_at and updated_at of an
	// approval that is still pending. The status check and the write are a
	// single step; a resolved approval yields ConflictError.
	ResolveApproval(ctx context.Context, approval *mission.Approval) error

	// ApprovalsChangedSince returns approvals of q.BoardID with
	// updated_at >= q.Since, ordered by updated_at then id.
	ApprovalsChangedSince(ctx context.Context, q ChangeQuery) ([]*mission.Approval, error)
}

// MemoryStore persists board memory. Memory is append-only.
type MemoryStore interface {
	CreateMemory(ctx context.Context, item *mission.MemoryItem) error
	ListMemory(ctx context.Context, filter MemoryFilter) ([]*mission.MemoryItem, error)

	// MemoryChangedSince returns memory of q.BoardID with created_at >=
	// q.Since, filtered by q.IsChat when set, ordered by created_at then id.
	MemoryChangedSince(ctx context.Context, q ChangeQuery) ([]*mission.MemoryItem, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *mission.Task) error
	GetTask(ctx context.Context, id string) (*mission.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*mission.Task, error)

	// UpdateTask overwrites title, description, status, priority,
	// assigned_agent_id and updated_at.
	UpdateTask(ctx context.Context, task *mission.Task) error
}

// ActivityStore persists the activity feed. Events are append-only.
type ActivityStore interface {
	CreateActivity(ctx context.Context, event *mission.ActivityEvent) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]*mission.ActivityEvent, error)

	// ActivityChangedSince returns events with created_at >= q.Since scoped
	// by q.OrgID, optionally q.BoardID and q.EventType, ordered by
	// created_at then id.
	ActivityChangedSince(ctx context.Context, q ChangeQuery) ([]*mission.ActivityEvent, error)
}
