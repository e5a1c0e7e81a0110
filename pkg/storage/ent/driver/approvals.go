package entdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

var approvalColumns = []string{"id", "board_id", "agent_id", "action_type", "payload", "confidence", "status", "resolved_at", "created_at", "updated_at"}

// CreateApproval inserts an approval.
func (ed *EntDriver) CreateApproval(ctx context.Context, a *mission.Approval) error {
	insert := ed.dialect().Insert(schema.ApprovalsTable).
		Columns(approvalColumns...).
		Values(a.ID, a.BoardID, a.AgentID, a.ActionType, string(a.Payload), a.Confidence, a.Status,
			formatNullTime(a.ResolvedAt),
			mission.FormatTimestamp(a.CreatedAt), mission.FormatTimestamp(a.UpdatedAt))

	return ed.insert(ctx, insert, "approval", a.ID)
}

// GetApproval returns an approval by id.
func (ed *EntDriver) GetApproval(ctx context.Context, id string) (*mission.Approval, error) {
	sel := ed.selectFrom(schema.ApprovalsTable, approvalColumns).Where(entsql.EQ("id", id))
	return one(ctx, ed, sel, scanApproval, "approval", id)
}

// ListApprovals returns the approvals of a board, newest first.
func (ed *EntDriver) ListApprovals(ctx context.Context, f storage.ApprovalFilter) ([]*mission.Approval, error) {
	sel := where(ed.selectFrom(schema.ApprovalsTable, approvalColumns), []column{
		{"board_id", f.BoardID},
		{"status", f.Status},
	})
	sel = page(sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")), f.Page)

	approvals, err := list(ctx, ed, sel, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	return approvals, nil
}

// ResolveApproval records a resolution if the approval is still pending.
func (ed *EntDriver) ResolveApproval(ctx context.Context, a *mission.Approval) error {
	update := ed.dialect().Update(schema.ApprovalsTable).
		Set("status", a.Status).
		Set("resolved_at", formatNullTime(a.ResolvedAt)).
		Set("updated_at", mission.FormatTimestamp(a.UpdatedAt)).
		Where(entsql.And(
			entsql.EQ("id", a.ID),
			entsql.EQ("status", mission.ApprovalStatusPending),
		))

	n, err := ed.exec(ctx, update)
	if err != nil {
		return fmt.Errorf("could not resolve approval: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: tell a missing approval from one resolved meanwhile.
	if _, err := ed.GetApproval(ctx, a.ID); err != nil {
		return err
	}
	return storage.ConflictError{Kind: "approval", ID: a.ID, Reason: "already resolved"}
}

// ApprovalsChangedSince returns approvals of a board updated at or after
// q.Since.
func (ed *EntDriver) ApprovalsChangedSince(ctx context.Context, q storage.ChangeQuery) ([]*mission.Approval, error) {
	sel := ed.selectFrom(schema.ApprovalsTable, approvalColumns).
		Where(entsql.And(
			entsql.EQ("board_id", q.BoardID),
			entsql.GTE("updated_at", mission.FormatTimestamp(q.Since)),
		)).
		OrderBy("updated_at", "id")

	approvals, err := list(ctx, ed, sel, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to query changed approvals: %w", err)
	}
	return approvals, nil
}

func scanApproval(s scanner) (*mission.Approval, error) {
	var (
		a                mission.Approval
		payload          string
		resolved         sql.NullString
		created, updated string
	)
	if err := s.Scan(&a.ID, &a.BoardID, &a.AgentID, &a.ActionType, &payload, &a.Confidence, &a.Status,
		&resolved, &created, &updated); err != nil {
		return nil, err
	}

	if payload != "" {
		a.Payload = json.RawMessage(payload)
	}

	var err error
	if a.ResolvedAt, err = parseNullTime(resolved); err != nil {
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
