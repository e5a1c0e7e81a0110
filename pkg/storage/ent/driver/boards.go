package entdriver

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var boardColumns = []string{"id", "org_id", "name", "slug", "description", "created_at", "updated_at"}

// CreateBoard inserts a board.
func (ed *EntDriver) CreateBoard(ctx context.Context, b *mission.Board) error {
	insert := ed.dialect().Insert(schema.BoardsTable).
		Columns(boardColumns...).
		Values(b.ID, b.OrgID, b.Name, b.Slug, b.Description,
			mission.FormatTimestamp(b.CreatedAt), mission.FormatTimestamp(b.UpdatedAt))

	return ed.insert(ctx, insert, "board", b.ID)
}

// GetBoard returns a board by id.
func (ed *EntDriver) GetBoard(ctx context.Context, id string) (*mission.Board, error) {
	sel := ed.selectFrom(schema.BoardsTable, boardColumns).Where(entsql.EQ("id", id))
	return one(ctx, ed, sel, scanBoard, "board", id)
}

// ListBoards returns the boards of an organization, oldest first.
func (ed *EntDriver) ListBoards(ctx context.Context, f storage.BoardFilter) ([]*mission.Board, error) {
	sel := where(ed.selectFrom(schema.BoardsTable, boardColumns), []column{{"org_id", f.OrgID}})
	sel = page(sel.OrderBy("created_at", "id"), f.Page)

	boards, err := list(ctx, ed, sel, scanBoard)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

func scanBoard(s scanner) (*mission.Board, error) {
	var (
		b                mission.Board
		created, updated string
	)
	if err := s.Scan(&b.ID, &b.OrgID, &b.Name, &b.Slug, &b.Description, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &b, nil
}
