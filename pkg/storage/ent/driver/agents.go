package entdriver

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var agentColumns = []string{"id", "org_id", "board_id", "name", "status", "token_hash", "last_seen_at", "created_at", "updated_at"}

// CreateAgent inserts an agent.
func (ed *EntDriver) CreateAgent(ctx context.Context, a *mission.Agent) error {
	insert := ed.dialect().Insert(schema.AgentsTable).
		Columns(agentColumns...).
		Values(a.ID, a.OrgID, a.BoardID, a.Name, a.Status, a.TokenHash,
			formatNullTime(a.LastSeenAt),
			mission.FormatTimestamp(a.CreatedAt), mission.FormatTimestamp(a.UpdatedAt))

	return ed.insert(ctx, insert, "agent", a.ID)
}

// GetAgent returns an agent by id.
func (ed *EntDriver) GetAgent(ctx context.Context, id string) (*mission.Agent, error) {
	sel := ed.selectFrom(schema.AgentsTable, agentColumns).Where(entsql.EQ("id", id))
	return one(ctx, ed, sel, scanAgent, "agent", id)
}

// AgentByTokenHash returns the agent owning the token digest.
func (ed *EntDriver) AgentByTokenHash(ctx context.Context, hash string) (*mission.Agent, error) {
	if hash == "" {
		return nil, storage.NotFoundError{Kind: "agent"}
	}
	sel := ed.selectFrom(schema.AgentsTable, agentColumns).Where(entsql.EQ("token_hash", hash))
	return one(ctx, ed, sel, scanAgent, "agent", "")
}

// ListAgents returns agents matching f, oldest first.
func (ed *EntDriver) ListAgents(ctx context.Context, f storage.AgentFilter) ([]*mission.Agent, error) {
	sel := where(ed.selectFrom(schema.AgentsTable, agentColumns), []column{
		{"org_id", f.OrgID},
		{"board_id", f.BoardID},
		{"status", f.Status},
	})
	sel = page(sel.OrderBy("created_at", "id"), f.Page)

	agents, err := list(ctx, ed, sel, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// UpdateAgent overwrites the mutable fields of an agent.
func (ed *EntDriver) UpdateAgent(ctx context.Context, a *mission.Agent) error {
	update := ed.dialect().Update(schema.AgentsTable).
		Set("name", a.Name).
		Set("status", a.Status).
		Set("last_seen_at", formatNullTime(a.LastSeenAt)).
		Set("updated_at", mission.FormatTimestamp(a.UpdatedAt)).
		Where(entsql.EQ("id", a.ID))

	n, err := ed.exec(ctx, update)
	if err != nil {
		return fmt.Errorf("could not update agent: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "agent", ID: a.ID}
	}
	return nil
}

// AgentsChangedSince returns agents updated at or after q.Since.
func (ed *EntDriver) AgentsChangedSince(ctx context.Context, q storage.ChangeQuery) ([]*mission.Agent, error) {
	sel := where(ed.selectFrom(schema.AgentsTable, agentColumns), []column{
		{"org_id", q.OrgID},
		{"board_id", q.BoardID},
	})
	sel.Where(entsql.GTE("updated_at", mission.FormatTimestamp(q.Since))).
		OrderBy("updated_at", "id")

	agents, err := list(ctx, ed, sel, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed agents: %w", err)
	}
	return agents, nil
}

func scanAgent(s scanner) (*mission.Agent, error) {
	var (
		a                mission.Agent
		lastSeen         sql.NullString
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.OrgID, &a.BoardID, &a.Name, &a.Status, &a.TokenHash, &lastSeen, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if a.LastSeenAt, err = parseNullTime(lastSeen); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}
