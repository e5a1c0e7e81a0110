// Package storagetest holds the behavior every storage.Driver must share.
// Driver packages call DriverSpecs from inside a Describe block.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// T0 is the reference time the fixtures are built around.
var T0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// Board returns a board fixture.
func Board(id, org string) *mission.Board {
	return &mission.Board{ID: id, OrgID: org, Name: "Board " + id, Slug: id, CreatedAt: T0, UpdatedAt: T0}
}

// Agent returns an agent fixture updated at `at`.
func Agent(id string, board *mission.Board, at time.Time) *mission.Agent {
	return &mission.Agent{
		ID:        id,
		OrgID:     board.OrgID,
		BoardID:   board.ID,
		Name:      "agent " + id,
		Status:    mission.AgentStatusOnline,
		TokenHash: "hash-" + id,
		CreatedAt: T0,
		UpdatedAt: at,
	}
}

// DriverSpecs registers the shared driver specs. newDriver is called before
// each test and the driver is closed after it.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
		board  *mission.Board
		other  *mission.Board
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()

		board = Board("board-1", "org-1")
		other = Board("board-2", "org-2")
		Expect(driver.CreateBoard(ctx, board)).To(Succeed())
		Expect(driver.CreateBoard(ctx, other)).To(Succeed())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("boards", func() {
		It("round-trips a board", func() {
			got, err := driver.GetBoard(ctx, "board-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(board))
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.GetBoard(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("rejects duplicate ids", func() {
			err := driver.CreateBoard(ctx, Board("board-1", "org-1"))
			var dup storage.DuplicateError
			Expect(errors.As(err, &dup)).To(BeTrue())
		})

		It("lists boards of one organization", func() {
			boards, err := driver.ListBoards(ctx, storage.BoardFilter{OrgID: "org-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(boards).To(HaveLen(1))
			Expect(boards[0].ID).To(Equal("board-1"))
		})

		It("paginates", func() {
			for i := range 5 {
				b := Board(fmt.Sprintf("page-%d", i), "org-p")
				b.CreatedAt = T0.Add(time.Duration(i) * time.Second)
				Expect(driver.CreateBoard(ctx, b)).To(Succeed())
			}

			boards, err := driver.ListBoards(ctx, storage.BoardFilter{OrgID: "org-p", Page: storage.Page{Limit: 2, Offset: 1}})
			Expect(err).NotTo(HaveOccurred())
			Expect(boards).To(HaveLen(2))
			Expect(boards[0].ID).To(Equal("page-1"))
			Expect(boards[1].ID).To(Equal("page-2"))
		})
	})

	Describe("agents", func() {
		It("round-trips an agent and resolves it by token digest", func() {
			seen := T0.Add(time.Minute)
			a := Agent("agent-1", board, T0)
			a.LastSeenAt = &seen
			Expect(driver.CreateAgent(ctx, a)).To(Succeed())

			got, err := driver.GetAgent(ctx, "agent-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(a))

			byToken, err := driver.AgentByTokenHash(ctx, "hash-agent-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(byToken.ID).To(Equal("agent-1"))

			_, err = driver.AgentByTokenHash(ctx, "")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("updates mutable fields", func() {
			a := Agent("agent-1", board, T0)
			Expect(driver.CreateAgent(ctx, a)).To(Succeed())

			a.Status = mission.AgentStatusBusy
			a.UpdatedAt = T0.Add(time.Hour)
			Expect(driver.UpdateAgent(ctx, a)).To(Succeed())

			got, err := driver.GetAgent(ctx, "agent-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(mission.AgentStatusBusy))
			Expect(got.UpdatedAt).To(Equal(T0.Add(time.Hour)))

			missing := Agent("ghost", board, T0)
			Expect(storage.IsNotFound(driver.UpdateAgent(ctx, missing))).To(BeTrue())
		})

		It("returns agents changed at or after since in version order", func() {
			Expect(driver.CreateAgent(ctx, Agent("late", board, T0.Add(3*time.Second)))).To(Succeed())
			Expect(driver.CreateAgent(ctx, Agent("early", board, T0.Add(time.Second)))).To(Succeed())
			Expect(driver.CreateAgent(ctx, Agent("old", board, T0.Add(-time.Second)))).To(Succeed())
			Expect(driver.CreateAgent(ctx, Agent("foreign", other, T0.Add(time.Second)))).To(Succeed())

			agents, err := driver.AgentsChangedSince(ctx, storage.ChangeQuery{Since: T0.Add(time.Second), OrgID: "org-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(agents, func(a *mission.Agent) string { return a.ID })).To(Equal([]string{"early", "late"}))

			agents, err = driver.AgentsChangedSince(ctx, storage.ChangeQuery{Since: T0.Add(-time.Hour), OrgID: "org-1", BoardID: "board-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(BeEmpty())
		})

		It("compares since at microsecond precision", func() {
			at := T0.Add(1500 * time.Nanosecond)
			Expect(driver.CreateAgent(ctx, Agent("agent-1", board, mission.Normalize(at)))).To(Succeed())

			agents, err := driver.AgentsChangedSince(ctx, storage.ChangeQuery{Since: mission.Normalize(at), OrgID: "org-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(HaveLen(1))

			agents, err = driver.AgentsChangedSince(ctx, storage.ChangeQuery{Since: at.Add(time.Microsecond), OrgID: "org-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(BeEmpty())
		})
	})

	Describe("approvals", func() {
		var approval *mission.Approval

		BeforeEach(func() {
			approval = &mission.Approval{
				ID:         "appr-1",
				BoardID:    "board-1",
				AgentID:    "agent-1",
				ActionType: "deploy",
				Payload:    json.RawMessage(`{"env":"prod"}`),
				Confidence: 0.75,
				Status:     mission.ApprovalStatusPending,
				CreatedAt:  T0,
				UpdatedAt:  T0,
			}
			Expect(driver.CreateApproval(ctx, approval)).To(Succeed())
		})

		It("round-trips an approval", func() {
			got, err := driver.GetApproval(ctx, "appr-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(approval))
		})

		It("surfaces a resolution through the change query", func() {
			resolved := T0.Add(time.Minute)
			approval.Status = mission.ApprovalStatusApproved
			approval.ResolvedAt = &resolved
			approval.UpdatedAt = resolved
			Expect(driver.ResolveApproval(ctx, approval)).To(Succeed())

			changed, err := driver.ApprovalsChangedSince(ctx, storage.ChangeQuery{Since: T0.Add(time.Second), BoardID: "board-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(HaveLen(1))
			Expect(changed[0].Status).To(Equal(mission.ApprovalStatusApproved))
			Expect(*changed[0].ResolvedAt).To(Equal(resolved))
		})

		It("resolves an approval only once", func() {
			resolved := T0.Add(time.Minute)
			approval.Status = mission.ApprovalStatusApproved
			approval.ResolvedAt = &resolved
			approval.UpdatedAt = resolved
			Expect(driver.ResolveApproval(ctx, approval)).To(Succeed())

			again := *approval
			again.Status = mission.ApprovalStatusRejected
			var conflict storage.ConflictError
			Expect(errors.As(driver.ResolveApproval(ctx, &again), &conflict)).To(BeTrue())

			got, err := driver.GetApproval(ctx, approval.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(mission.ApprovalStatusApproved))

			missing := again
			missing.ID = "appr-missing"
			Expect(storage.IsNotFound(driver.ResolveApproval(ctx, &missing))).To(BeTrue())
		})

		It("lets exactly one of two concurrent resolutions win", func() {
			resolved := T0.Add(time.Minute)
			statuses := []string{mission.ApprovalStatusApproved, mission.ApprovalStatusRejected}
			errs := make([]error, len(statuses))

			var wg sync.WaitGroup
			for i, status := range statuses {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a := *approval
					a.Status = status
					a.ResolvedAt = &resolved
					a.UpdatedAt = resolved
					errs[i] = driver.ResolveApproval(ctx, &a)
				}()
			}
			wg.Wait()

			var wins, conflicts int
			for _, err := range errs {
				var conflict storage.ConflictError
				switch {
				case err == nil:
					wins++
				case errors.As(err, &conflict):
					conflicts++
				}
			}
			Expect(wins).To(Equal(1))
			Expect(conflicts).To(Equal(1))
		})

		It("filters listings by status", func() {
			pending, err := driver.ListApprovals(ctx, storage.ApprovalFilter{BoardID: "board-1", Status: mission.ApprovalStatusPending})
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))

			approved, err := driver.ListApprovals(ctx, storage.ApprovalFilter{BoardID: "board-1", Status: mission.ApprovalStatusApproved})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved).To(BeEmpty())
		})
	})

	Describe("memory", func() {
		BeforeEach(func() {
			Expect(driver.CreateMemory(ctx, &mission.MemoryItem{
				ID: "mem-1", BoardID: "board-1", Content: "remember the milk", Tags: []string{"errand"}, CreatedAt: T0,
			})).To(Succeed())
			Expect(driver.CreateMemory(ctx, &mission.MemoryItem{
				ID: "mem-2", BoardID: "board-1", Content: "hello", IsChat: true, Source: "user-1", CreatedAt: T0.Add(time.Second),
			})).To(Succeed())
		})

		It("lists newest first", func() {
			items, err := driver.ListMemory(ctx, storage.MemoryFilter{BoardID: "board-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(items, func(m *mission.MemoryItem) string { return m.ID })).To(Equal([]string{"mem-2", "mem-1"}))
			Expect(items[1].Tags).To(Equal([]string{"errand"}))
		})

		It("filters the change query by chat flag", func() {
			chat := true
			items, err := driver.MemoryChangedSince(ctx, storage.ChangeQuery{Since: T0, BoardID: "board-1", IsChat: &chat})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(items, func(m *mission.MemoryItem) string { return m.ID })).To(Equal([]string{"mem-2"}))

			items, err = driver.MemoryChangedSince(ctx, storage.ChangeQuery{Since: T0, BoardID: "board-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
		})
	})

	Describe("tasks", func() {
		It("creates, updates and lists tasks", func() {
			task := &mission.Task{
				ID: "task-1", BoardID: "board-1", Title: "Ship it", Status: mission.TaskStatusInbox,
				CreatedAt: T0, UpdatedAt: T0,
			}
			Expect(driver.CreateTask(ctx, task)).To(Succeed())

			task.Status = mission.TaskStatusInProgress
			task.AssignedAgentID = "agent-1"
			task.UpdatedAt = T0.Add(time.Minute)
			Expect(driver.UpdateTask(ctx, task)).To(Succeed())

			got, err := driver.GetTask(ctx, "task-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(task))

			inProgress, err := driver.ListTasks(ctx, storage.TaskFilter{BoardID: "board-1", Status: mission.TaskStatusInProgress})
			Expect(err).NotTo(HaveOccurred())
			Expect(inProgress).To(HaveLen(1))
		})
	})

	Describe("activity", func() {
		BeforeEach(func() {
			for i, typ := range []string{mission.EventTypeTaskCreated, mission.EventTypeTaskComment, mission.EventTypeTaskComment} {
				Expect(driver.CreateActivity(ctx, &mission.ActivityEvent{
					ID:        fmt.Sprintf("evt-%d", i),
					OrgID:     "org-1",
					BoardID:   "board-1",
					EventType: typ,
					Message:   "message",
					TaskID:    "task-1",
					CreatedAt: T0.Add(time.Duration(i) * time.Second),
				})).To(Succeed())
			}
		})

		It("returns comments at or after since", func() {
			events, err := driver.ActivityChangedSince(ctx, storage.ChangeQuery{
				Since:     T0.Add(time.Second),
				OrgID:     "org-1",
				EventType: mission.EventTypeTaskComment,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(events, func(e *mission.ActivityEvent) string { return e.ID })).To(Equal([]string{"evt-1", "evt-2"}))
		})

		It("lists newest first filtered by type", func() {
			events, err := driver.ListActivity(ctx, storage.ActivityFilter{OrgID: "org-1", EventType: mission.EventTypeTaskCreated})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))

			all, err := driver.ListActivity(ctx, storage.ActivityFilter{BoardID: "board-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(all, func(e *mission.ActivityEvent) string { return e.ID })).To(Equal([]string{"evt-2", "evt-1", "evt-0"}))
		})
	})

	It("returns ErrClosed after Close", func() {
		Expect(driver.Close()).To(Succeed())
		_, err := driver.GetBoard(ctx, "board-1")
		Expect(err).To(MatchError(storage.ErrClosed))
	})
}

func ids[T any](rows []*T, id func(*T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r))
	}
	return out
}
