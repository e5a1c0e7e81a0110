package inmemory

import (
	"context"
	"time"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

func boardKey(b *mission.Board) (time.Time, string)              { return b.CreatedAt, b.ID }
func agentCreatedKey(a *mission.Agent) (time.Time, string)       { return a.CreatedAt, a.ID }
func agentUpdatedKey(a *mission.Agent) (time.Time, string)       { return a.UpdatedAt, a.ID }
func approvalCreatedKey(a *mission.Approval) (time.Time, string) { return a.CreatedAt, a.ID }
func approvalUpdatedKey(a *mission.Approval) (time.Time, string) { return a.UpdatedAt, a.ID }
func memoryKey(m *mission.MemoryItem) (time.Time, string)        { return m.CreatedAt, m.ID }
func taskKey(t *mission.Task) (time.Time, string)                { return t.CreatedAt, t.ID }
func activityKey(e *mission.ActivityEvent) (time.Time, string)   { return e.CreatedAt, e.ID }

func (d *Driver) CreateBoard(_ context.Context, b *mission.Board) error {
	return d.write(func() error { return insert(d.boards, "board", b.ID, b) })
}

func (d *Driver) GetBoard(_ context.Context, id string) (b *mission.Board, err error) {
	err = d.read(func() error {
		b, err = get(d.boards, "board", id)
		return err
	})
	return b, err
}

func (d *Driver) ListBoards(_ context.Context, f storage.BoardFilter) (out []*mission.Board, err error) {
	err = d.read(func() error {
		rows := collect(d.boards, func(b *mission.Board) bool { return matches(f.OrgID, b.OrgID) }, boardKey)
		out = paginate(rows, f.Page, false)
		return nil
	})
	return out, err
}

func (d *Driver) CreateAgent(_ context.Context, a *mission.Agent) error {
	return d.write(func() error { return insert(d.agents, "agent", a.ID, a) })
}

func (d *Driver) GetAgent(_ context.Context, id string) (a *mission.Agent, err error) {
	err = d.read(func() error {
		a, err = get(d.agents, "agent", id)
		return err
	})
	return a, err
}

func (d *Driver) AgentByTokenHash(_ context.Context, hash string) (a *mission.Agent, err error) {
	err = d.read(func() error {
		for _, v := range d.agents {
			if hash != "" && v.TokenHash == hash {
				c := *v
				a = &c
				return nil
			}
		}
		return storage.NotFoundError{Kind: "agent"}
	})
	return a, err
}

func (d *Driver) ListAgents(_ context.Context, f storage.AgentFilter) (out []*mission.Agent, err error) {
	err = d.read(func() error {
		rows := collect(d.agents, func(a *mission.Agent) bool {
			return matches(f.OrgID, a.OrgID) && matches(f.BoardID, a.BoardID) && matches(f.Status, a.Status)
		}, agentCreatedKey)
		out = paginate(rows, f.Page, false)
		return nil
	})
	return out, err
}

func (d *Driver) UpdateAgent(_ context.Context, a *mission.Agent) error {
	return d.write(func() error {
		cur, ok := d.agents[a.ID]
		if !ok {
			return storage.NotFoundError{Kind: "agent", ID: a.ID}
		}
		cur.Name = a.Name
		cur.Status = a.Status
		cur.LastSeenAt = a.LastSeenAt
		cur.UpdatedAt = a.UpdatedAt
		return nil
	})
}

func (d *Driver) AgentsChangedSince(_ context.Context, q storage.ChangeQuery) (out []*mission.Agent, err error) {
	err = d.read(func() error {
		out = collect(d.agents, func(a *mission.Agent) bool {
			return matches(q.OrgID, a.OrgID) && matches(q.BoardID, a.BoardID) && since(a.UpdatedAt, q.Since)
		}, agentUpdatedKey)
		return nil
	})
	return out, err
}

func (d *Driver) CreateApproval(_ context.Context, a *mission.Approval) error {
	return d.write(func() error { return insert(d.approvals, "approval", a.ID, a) })
}

func (d *Driver) GetApproval(_ context.Context, id string) (a *mission.Approval, err error) {
	err = d.read(func() error {
		a, err = get(d.approvals, "approval", id)
		return err
	})
	return a, err
}

func (d *Driver) ListApprovals(_ context.Context, f storage.ApprovalFilter) (out []*mission.Approval, err error) {
	err = d.read(func() error {
		rows := collect(d.approvals, func(a *mission.Approval) bool {
			return matches(f.BoardID, a.BoardID) && matches(f.Status, a.Status)
		}, approvalCreatedKey)
		out = paginate(rows, f.Page, true)
		return nil
	})
	return out, err
}

func (d *Driver) ResolveApproval(_ context.Context, a *mission.Approval) error {
	return d.write(func() error {
		cur, ok := d.approvals[a.ID]
		if !ok {
			return storage.NotFoundError{Kind: "approval", ID: a.ID}
		}
		if cur.Status != mission.ApprovalStatusPending {
			return storage.ConflictError{Kind: "approval", ID: a.ID, Reason: "already resolved"}
		}
		cur.Status = a.Status
		cur.ResolvedAt = a.ResolvedAt
		cur.UpdatedAt = a.UpdatedAt
		return nil
	})
}

func (d *Driver) ApprovalsChangedSince(_ context.Context, q storage.ChangeQuery) (out []*mission.Approval, err error) {
	err = d.read(func() error {
		out = collect(d.approvals, func(a *mission.Approval) bool {
			return a.BoardID == q.BoardID && since(a.UpdatedAt, q.Since)
		}, approvalUpdatedKey)
		return nil
	})
	return out, err
}

func (d *Driver) CreateMemory(_ context.Context, m *mission.MemoryItem) error {
	return d.write(func() error { return insert(d.memory, "memory", m.ID, m) })
}

func (d *Driver) ListMemory(_ context.Context, f storage.MemoryFilter) (out []*mission.MemoryItem, err error) {
	err = d.read(func() error {
		rows := collect(d.memory, func(m *mission.MemoryItem) bool {
			return m.BoardID == f.BoardID && (f.IsChat == nil || *f.IsChat == m.IsChat)
		}, memoryKey)
		out = paginate(rows, f.Page, true)
		return nil
	})
	return out, err
}

func (d *Driver) MemoryChangedSince(_ context.Context, q storage.ChangeQuery) (out []*mission.MemoryItem, err error) {
	err = d.read(func() error {
		out = collect(d.memory, func(m *mission.MemoryItem) bool {
			return m.BoardID == q.BoardID && (q.IsChat == nil || *q.IsChat == m.IsChat) && since(m.CreatedAt, q.Since)
		}, memoryKey)
		return nil
	})
	return out, err
}

func (d *Driver) CreateTask(_ context.Context, t *mission.Task) error {
	return d.write(func() error { return insert(d.tasks, "task", t.ID, t) })
}

func (d *Driver) GetTask(_ context.Context, id string) (t *mission.Task, err error) {
	err = d.read(func() error {
		t, err = get(d.tasks, "task", id)
		return err
	})
	return t, err
}

func (d *Driver) ListTasks(_ context.Context, f storage.TaskFilter) (out []*mission.Task, err error) {
	err = d.read(func() error {
		rows := collect(d.tasks, func(t *mission.Task) bool {
			return matches(f.BoardID, t.BoardID) && matches(f.Status, t.Status)
		}, taskKey)
		out = paginate(rows, f.Page, false)
		return nil
	})
	return out, err
}

func (d *Driver) UpdateTask(_ context.Context, t *mission.Task) error {
	return d.write(func() error {
		cur, ok := d.tasks[t.ID]
		if !ok {
			return storage.NotFoundError{Kind: "task", ID: t.ID}
		}
		cur.Title = t.Title
		cur.Description = t.Description
		cur.Status = t.Status
		cur.Priority = t.Priority
		cur.AssignedAgentID = t.AssignedAgentID
		cur.UpdatedAt = t.UpdatedAt
		return nil
	})
}

func (d *Driver) CreateActivity(_ context.Context, e *mission.ActivityEvent) error {
	return d.write(func() error { return insert(d.activity, "activity event", e.ID, e) })
}

func (d *Driver) ListActivity(_ context.Context, f storage.ActivityFilter) (out []*mission.ActivityEvent, err error) {
	err = d.read(func() error {
		rows := collect(d.activity, func(e *mission.ActivityEvent) bool {
			return matches(f.OrgID, e.OrgID) && matches(f.BoardID, e.BoardID) &&
				matches(f.TaskID, e.TaskID) && matches(f.EventType, e.EventType)
		}, activityKey)
		out = paginate(rows, f.Page, true)
		return nil
	})
	return out, err
}

func (d *Driver) ActivityChangedSince(_ context.Context, q storage.ChangeQuery) (out []*mission.ActivityEvent, err error) {
	err = d.read(func() error {
		out = collect(d.activity, func(e *mission.ActivityEvent) bool {
			return matches(q.OrgID, e.OrgID) && matches(q.BoardID, e.BoardID) &&
				matches(q.EventType, e.EventType) && since(e.CreatedAt, q.Since)
		}, activityKey)
		return nil
	})
	return out, err
}
