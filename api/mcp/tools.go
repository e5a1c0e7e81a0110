package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

var (
	listAgentsToolName    = "list_agents"
	listAgentsDescription = "List the agents working on mission control boards, with their status and when they were last seen. Optionally filter by board and status (provisioning, online, busy, offline)."

	listPendingApprovalsToolName    = "list_pending_approvals"
	listPendingApprovalsDescription = "List approvals on a board that are still waiting for a human decision, newest first. Agents default to their own board."

	recallBoardMemoryToolName    = "recall_board_memory"
	recallBoardMemoryDescription = "Recall notes and chat messages from a board's shared memory, newest first. Optionally filter by a case-insensitive query matched against content and tags."
)

// maxRecall bounds recall_board_memory results.
const maxRecall = 100

// ListAgentsInput represents the input arguments for the list_agents tool.
type ListAgentsInput struct {
	BoardID string `json:"board_id,omitempty" jsonschema:"only list agents of this board"`
	Status  string `json:"status,omitempty" jsonschema:"only list agents with this status"`
}

// ListAgentsOutput represents the structured output of list_agents.
type ListAgentsOutput struct {
	Agents []Agent `json:"agents"`
}

// ListPendingApprovalsInput represents the input arguments for the
// list_pending_approvals tool.
type ListPendingApprovalsInput struct {
	BoardID string `json:"board_id,omitempty" jsonschema:"the board to list approvals of; required for users"`
}

// ListPendingApprovalsOutput represents the structured output of
// list_pending_approvals.
type ListPendingApprovalsOutput struct {
	Approvals []Approval `json:"approvals"`
}

// RecallBoardMemoryInput represents the input arguments for the
// recall_board_memory tool.
type RecallBoardMemoryInput struct {
	BoardID  string `json:"board_id,omitempty" jsonschema:"the board to recall memory from; required for users"`
	Query    string `json:"query,omitempty" jsonschema:"case-insensitive text to match against content and tags"`
	ChatOnly bool   `json:"chat_only,omitempty" jsonschema:"only recall chat messages"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of items to return (default 20, max 100)"`
}

// RecallBoardMemoryOutput represents the structured output of
// recall_board_memory.
type RecallBoardMemoryOutput struct {
	Memory []MemoryItem `json:"memory"`
}

// Agent is the tool view of a mission.Agent.
type Agent struct {
	ID         string `json:"id"`
	BoardID    string `json:"board_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	LastSeenAt string `json:"last_seen_at,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// Approval is the tool view of a mission.Approval.
type Approval struct {
	ID         string  `json:"id"`
	AgentID    string  `json:"agent_id,omitempty"`
	ActionType string  `json:"action_type"`
	Payload    string  `json:"payload,omitempty"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

// MemoryItem is the tool view of a mission.MemoryItem.
type MemoryItem struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	Source    string   `json:"source,omitempty"`
	IsChat    bool     `json:"is_chat"`
	CreatedAt string   `json:"created_at"`
}

// tools answers tool calls on behalf of one actor.
type tools struct {
	driver storage.Driver
	actor  *actor.Actor
}

// boardFor resolves the board a call is about. Agents are pinned to their
// own board; users must name one they can access.
func (t *tools) boardFor(ctx context.Context, boardID string) (*mission.Board, error) {
	if !t.actor.IsUser() {
		boardID = t.actor.BoardID
	}
	if boardID == "" {
		return nil, errors.New("board_id is required")
	}

	b, err := t.driver.GetBoard(ctx, boardID)
	if err != nil || !actor.CanAccessBoard(t.actor, b) {
		return nil, fmt.Errorf("board not found: %s", boardID)
	}
	return b, nil
}

func (t *tools) listAgents(ctx context.Context, input ListAgentsInput) (ListAgentsOutput, error) {
	if input.Status != "" && !mission.IsValidAgentStatus(input.Status) {
		return ListAgentsOutput{}, fmt.Errorf("invalid status %q", input.Status)
	}

	filter := storage.AgentFilter{OrgID: t.actor.OrgID, Status: input.Status}
	if input.BoardID != "" || !t.actor.IsUser() {
		b, err := t.boardFor(ctx, input.BoardID)
		if err != nil {
			return ListAgentsOutput{}, err
		}
		filter.BoardID = b.ID
	}

	agents, err := t.driver.ListAgents(ctx, filter)
	if err != nil {
		return ListAgentsOutput{}, fmt.Errorf("listing agents: %w", err)
	}

	out := ListAgentsOutput{Agents: make([]Agent, 0, len(agents))}
	for _, a := range agents {
		v := Agent{
			ID:        a.ID,
			BoardID:   a.BoardID,
			Name:      a.Name,
			Status:    a.Status,
			UpdatedAt: mission.FormatTimestamp(a.UpdatedAt),
		}
		if a.LastSeenAt != nil {
			v.LastSeenAt = mission.FormatTimestamp(*a.LastSeenAt)
		}
		out.Agents = append(out.Agents, v)
	}
	return out, nil
}

func (t *tools) listPendingApprovals(ctx context.Context, input ListPendingApprovalsInput) (ListPendingApprovalsOutput, error) {
	b, err := t.boardFor(ctx, input.BoardID)
	if err != nil {
		return ListPendingApprovalsOutput{}, err
	}

	approvals, err := t.driver.ListApprovals(ctx, storage.ApprovalFilter{
		BoardID: b.ID,
		Status:  mission.ApprovalStatusPending,
	})
	if err != nil {
		return ListPendingApprovalsOutput{}, fmt.Errorf("listing approvals: %w", err)
	}

	out := ListPendingApprovalsOutput{Approvals: make([]Approval, 0, len(approvals))}
	for _, a := range approvals {
		out.Approvals = append(out.Approvals, Approval{
			ID:         a.ID,
			AgentID:    a.AgentID,
			ActionType: a.ActionType,
			Payload:    string(a.Payload),
			Confidence: a.Confidence,
			CreatedAt:  mission.FormatTimestamp(a.CreatedAt),
		})
	}
	return out, nil
}

func (t *tools) recallBoardMemory(ctx context.Context, input RecallBoardMemoryInput) (RecallBoardMemoryOutput, error) {
	b, err := t.boardFor(ctx, input.BoardID)
	if err != nil {
		return RecallBoardMemoryOutput{}, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, maxRecall)

	filter := storage.MemoryFilter{BoardID: b.ID}
	if input.ChatOnly {
		chat := true
		filter.IsChat = &chat
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	if query == "" {
		filter.Page.Limit = limit
	} else {
		// Matching happens here, so scan a full page.
		filter.Page.Limit = storage.MaxPageLimit
	}

	items, err := t.driver.ListMemory(ctx, filter)
	if err != nil {
		return RecallBoardMemoryOutput{}, fmt.Errorf("listing memory: %w", err)
	}

	out := RecallBoardMemoryOutput{Memory: []MemoryItem{}}
	for _, m := range items {
		if len(out.Memory) == limit {
			break
		}
		if query != "" && !matchesMemory(m, query) {
			continue
		}
		out.Memory = append(out.Memory, MemoryItem{
			ID:        m.ID,
			Content:   m.Content,
			Tags:      m.Tags,
			Source:    m.Source,
			IsChat:    m.IsChat,
			CreatedAt: mission.FormatTimestamp(m.CreatedAt),
		})
	}
	return out, nil
}

func matchesMemory(m *mission.MemoryItem, query string) bool {
	if strings.Contains(strings.ToLower(m.Content), query) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// handleListAgents processes a list_agents request via MCP.
func (t *tools) handleListAgents(ctx context.Context, _ *mcp.CallToolRequest, input ListAgentsInput) (*mcp.CallToolResult, ListAgentsOutput, error) {
	out, err := t.listAgents(ctx, input)
	return toolResult(out, err)
}

// handleListPendingApprovals processes a list_pending_approvals request via MCP.
func (t *tools) handleListPendingApprovals(ctx context.Context, _ *mcp.CallToolRequest, input ListPendingApprovalsInput) (*mcp.CallToolResult, ListPendingApprovalsOutput, error) {
	out, err := t.listPendingApprovals(ctx, input)
	return toolResult(out, err)
}

// handleRecallBoardMemory processes a recall_board_memory request via MCP.
func (t *tools) handleRecallBoardMemory(ctx context.Context, _ *mcp.CallToolRequest, input RecallBoardMemoryInput) (*mcp.CallToolResult, RecallBoardMemoryOutput, error) {
	out, err := t.recallBoardMemory(ctx, input)
	return toolResult(out, err)
}

// toolResult reports failures as tool errors the model can read, and
// successes as JSON text alongside the structured output.
func toolResult[Out any](out Out, err error) (*mcp.CallToolResult, Out, error) {
	var zero Out
	if err != nil {
		return errorResult(err.Error()), zero, nil
	}

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
