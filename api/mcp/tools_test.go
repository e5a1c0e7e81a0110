package mcp

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage/inmemory"
	"github.com/papercomputeco/missioncontrol/pkg/storage/storagetest"
)

var _ = Describe("tools", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		board  *mission.Board
		other  *mission.Board
		user   *tools
		agent  *tools
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		board = storagetest.Board("board-1", "org-1")
		other = storagetest.Board("board-2", "org-1")
		foreign := storagetest.Board("board-3", "org-2")
		for _, b := range []*mission.Board{board, other, foreign} {
			Expect(driver.CreateBoard(ctx, b)).To(Succeed())
		}

		Expect(driver.CreateAgent(ctx, storagetest.Agent("agent-1", board, storagetest.T0))).To(Succeed())
		Expect(driver.CreateAgent(ctx, storagetest.Agent("agent-2", other, storagetest.T0))).To(Succeed())
		Expect(driver.CreateAgent(ctx, storagetest.Agent("agent-3", foreign, storagetest.T0))).To(Succeed())

		user = &tools{driver: driver, actor: &actor.Actor{Type: actor.TypeUser, UserID: "user-1", OrgID: "org-1"}}
		agent = &tools{driver: driver, actor: &actor.Actor{Type: actor.TypeAgent, AgentID: "agent-1", OrgID: "org-1", BoardID: "board-1"}}
	})

	Describe("list_agents", func() {
		It("lists every agent of a user's organization", func() {
			out, err := user.listAgents(ctx, ListAgentsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Agents).To(HaveLen(2))
		})

		It("narrows to a board", func() {
			out, err := user.listAgents(ctx, ListAgentsInput{BoardID: "board-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Agents).To(HaveLen(1))
			Expect(out.Agents[0].ID).To(Equal("agent-2"))
		})

		It("pins agents to their own board", func() {
			out, err := agent.listAgents(ctx, ListAgentsInput{BoardID: "board-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Agents).To(HaveLen(1))
			Expect(out.Agents[0].ID).To(Equal("agent-1"))
		})

		It("hides boards of other organizations", func() {
			_, err := user.listAgents(ctx, ListAgentsInput{BoardID: "board-3"})
			Expect(err).To(MatchError(ContainSubstring("board not found")))
		})

		It("rejects unknown statuses", func() {
			_, err := user.listAgents(ctx, ListAgentsInput{Status: "sleeping"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("list_pending_approvals", func() {
		BeforeEach(func() {
			resolved := storagetest.T0.Add(time.Minute)
			for _, ap := range []*mission.Approval{
				{ID: "ap-1", BoardID: "board-1", AgentID: "agent-1", ActionType: "deploy", Payload: json.RawMessage(`{"env":"prod"}`), Confidence: 0.8, Status: mission.ApprovalStatusPending, CreatedAt: storagetest.T0, UpdatedAt: storagetest.T0},
				{ID: "ap-2", BoardID: "board-1", ActionType: "merge", Status: mission.ApprovalStatusApproved, CreatedAt: storagetest.T0, ResolvedAt: &resolved, UpdatedAt: resolved},
			} {
				Expect(driver.CreateApproval(ctx, ap)).To(Succeed())
			}
		})

		It("returns only pending approvals", func() {
			out, err := agent.listPendingApprovals(ctx, ListPendingApprovalsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Approvals).To(HaveLen(1))
			Expect(out.Approvals[0].ID).To(Equal("ap-1"))
			Expect(out.Approvals[0].Payload).To(MatchJSON(`{"env":"prod"}`))
		})

		It("requires users to name a board", func() {
			_, err := user.listPendingApprovals(ctx, ListPendingApprovalsInput{})
			Expect(err).To(MatchError("board_id is required"))
		})
	})

	Describe("recall_board_memory", func() {
		BeforeEach(func() {
			items := []*mission.MemoryItem{
				{ID: "m-1", BoardID: "board-1", Content: "Deploys go out on Tuesdays", Tags: []string{"release"}, CreatedAt: storagetest.T0},
				{ID: "m-2", BoardID: "board-1", Content: "hello team", IsChat: true, CreatedAt: storagetest.T0.Add(time.Second)},
				{ID: "m-3", BoardID: "board-1", Content: "Rollback plan lives in the wiki", Tags: []string{"Release"}, CreatedAt: storagetest.T0.Add(2 * time.Second)},
			}
			for _, m := range items {
				Expect(driver.CreateMemory(ctx, m)).To(Succeed())
			}
		})

		It("returns memory newest first", func() {
			out, err := agent.recallBoardMemory(ctx, RecallBoardMemoryInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Memory).To(HaveLen(3))
			Expect(out.Memory[0].ID).To(Equal("m-3"))
		})

		It("matches the query against content and tags", func() {
			out, err := user.recallBoardMemory(ctx, RecallBoardMemoryInput{BoardID: "board-1", Query: "release"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Memory).To(HaveLen(2))
		})

		It("filters chat messages", func() {
			out, err := agent.recallBoardMemory(ctx, RecallBoardMemoryInput{ChatOnly: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Memory).To(HaveLen(1))
			Expect(out.Memory[0].ID).To(Equal("m-2"))
		})

		It("honors the limit", func() {
			out, err := agent.recallBoardMemory(ctx, RecallBoardMemoryInput{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Memory).To(HaveLen(1))
		})
	})

	Describe("toolResult", func() {
		It("reports errors as tool errors", func() {
			res, _, err := toolResult(ListAgentsOutput{}, context.Canceled)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})

		It("returns JSON text for results", func() {
			res, out, err := agent.handleListAgents(ctx, nil, ListAgentsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Agents).To(HaveLen(1))
		})
	})
})
