package entdriver

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var taskColumns = []string{"id", "board_id", "title", "description", "status", "priority", "assigned_agent_id", "created_at", "updated_at"}

// CreateTask inserts a task.
func (ed *EntDriver) CreateTask(ctx context.Context, t *mission.Task) error {
	insert := ed.dialect().Insert(schema.TasksTable).
		Columns(taskColumns...).
		Values(t.ID, t.BoardID, t.Title, t.Description, t.Status, t.Priority, t.AssignedAgentID,
			mission.FormatTimestamp(t.CreatedAt), mission.FormatTimestamp(t.UpdatedAt))

	return ed.insert(ctx, insert, "task", t.ID)
}

// GetTask returns a task by id.
func (ed *EntDriver) GetTask(ctx context.Context, id string) (*mission.Task, error) {
	sel := ed.selectFrom(schema.TasksTable, taskColumns).Where(entsql.EQ("id", id))
	return one(ctx, ed, sel, scanTask, "task", id)
}

// ListTasks returns the tasks of a board, oldest first.
func (ed *EntDriver) ListTasks(ctx context.Context, f storage.TaskFilter) ([]*mission.Task, error) {
	sel := where(ed.selectFrom(schema.TasksTable, taskColumns), []column{
		{"board_id", f.BoardID},
		{"status", f.Status},
	})
	sel = page(sel.OrderBy("created_at", "id"), f.Page)

	tasks, err := list(ctx, ed, sel, scanTask)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask overwrites the mutable fields of a task.
func (ed *EntDriver) UpdateTask(ctx context.Context, t *mission.Task) error {
	update := ed.dialect().Update(schema.TasksTable).
		Set("title", t.Title).
		Set("description", t.Description).
		Set("status", t.Status).
		Set("priority", t.Priority).
		Set("assigned_agent_id", t.AssignedAgentID).
		Set("updated_at", mission.FormatTimestamp(t.UpdatedAt)).
		Where(entsql.EQ("id", t.ID))

	n, err := ed.exec(ctx, update)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Kind: "task", ID: t.ID}
	}
	return nil
}

func scanTask(s scanner) (*mission.Task, error) {
	var (
		t                mission.Task
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.BoardID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssignedAgentID,
		&created, &updated); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}
