package entdriver

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var memoryColumns = []string{"id", "board_id", "content", "tags", "source", "is_chat", "created_at"}

// CreateMemory appends a memory item.
func (ed *EntDriver) CreateMemory(ctx context.Context, m *mission.MemoryItem) error {
	tags, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}

	insert := ed.dialect().Insert(schema.MemoryTable).
		Columns(memoryColumns...).
		Values(m.ID, m.BoardID, m.Content, tags, m.Source, m.IsChat, mission.FormatTimestamp(m.CreatedAt))

	return ed.insert(ctx, insert, "memory", m.ID)
}

// ListMemory returns the memory of a board, newest first.
func (ed *EntDriver) ListMemory(ctx context.Context, f storage.MemoryFilter) ([]*mission.MemoryItem, error) {
	sel := ed.selectFrom(schema.MemoryTable, memoryColumns).Where(entsql.EQ("board_id", f.BoardID))
	if f.IsChat != nil {
		sel.Where(entsql.EQ("is_chat", *f.IsChat))
	}
	sel = page(sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")), f.Page)

	items, err := list(ctx, ed, sel, scanMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory: %w", err)
	}
	return items, nil
}

// MemoryChangedSince returns memory of a board created at or after q.Since.
func (ed *EntDriver) MemoryChangedSince(ctx context.Context, q storage.ChangeQuery) ([]*mission.MemoryItem, error) {
	sel := ed.selectFrom(schema.MemoryTable, memoryColumns).
		Where(entsql.And(
			entsql.EQ("board_id", q.BoardID),
			entsql.GTE("created_at", mission.FormatTimestamp(q.Since)),
		))
	if q.IsChat != nil {
		sel.Where(entsql.EQ("is_chat", *q.IsChat))
	}
	sel.OrderBy("created_at", "id")

	items, err := list(ctx, ed, sel, scanMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed memory: %w", err)
	}
	return items, nil
}

func scanMemory(s scanner) (*mission.MemoryItem, error) {
	var (
		m             mission.MemoryItem
		tags, created string
	)
	if err := s.Scan(&m.ID, &m.BoardID, &m.Content, &tags, &m.Source, &m.IsChat, &created); err != nil {
		return nil, err
	}

	var err error
	if m.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &m, nil
}
