package entdriver

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var activityColumns = []string{"id", "org_id", "board_id", "event_type", "message", "task_id", "agent_id", "created_at"}

// CreateActivity appends an activity event.
func (ed *EntDriver) CreateActivity(ctx context.Context, e *mission.ActivityEvent) error {
	insert := ed.dialect().Insert(schema.ActivityTable).
		Columns(activityColumns...).
		Values(e.ID, e.OrgID, e.BoardID, e.EventType, e.Message, e.TaskID, e.AgentID,
			mission.FormatTimestamp(e.CreatedAt))

	return ed.insert(ctx, insert, "activity event", e.ID)
}

// ListActivity returns activity matching f, newest first.
func (ed *EntDriver) ListActivity(ctx context.Context, f storage.ActivityFilter) ([]*mission.ActivityEvent, error) {
	sel := where(ed.selectFrom(schema.ActivityTable, activityColumns), []column{
		{"org_id", f.OrgID},
		{"board_id", f.BoardID},
		{"task_id", f.TaskID},
		{"event_type", f.EventType},
	})
	sel = page(sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")), f.Page)

	events, err := list(ctx, ed, sel, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return events, nil
}

// ActivityChangedSince returns activity created at or after q.Since.
func (ed *EntDriver) ActivityChangedSince(ctx context.Context, q storage.ChangeQuery) ([]*mission.ActivityEvent, error) {
	sel := where(ed.selectFrom(schema.ActivityTable, activityColumns), []column{
		{"org_id", q.OrgID},
		{"board_id", q.BoardID},
		{"event_type", q.EventType},
	})
	sel.Where(entsql.GTE("created_at", mission.FormatTimestamp(q.Since))).
		OrderBy("created_at", "id")

	events, err := list(ctx, ed, sel, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed activity: %w", err)
	}
	return events, nil
}

func scanActivity(s scanner) (*mission.ActivityEvent, error) {
	var (
		e       mission.ActivityEvent
		created string
	)
	if err := s.Scan(&e.ID, &e.OrgID, &e.BoardID, &e.EventType, &e.Message, &e.TaskID, &e.AgentID, &created); err != nil {
		return nil, err
	}

	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &e, nil
}
