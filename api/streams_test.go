package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/sse"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/storagetest"
	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

var _ = Describe("change sources", func() {
	It("marks closed storage as fatal", func() {
		src := changeSource(
			func(context.Context, storage.ChangeQuery) ([]*mission.Agent, error) {
				return nil, storage.ErrClosed
			},
			storage.ChangeQuery{},
			func(a *mission.Agent) stream.Change { return stream.Change{ID: a.ID} },
		)

		_, err := src.Changes(context.Background(), storagetest.T0)
		Expect(stream.IsFatal(err)).To(BeTrue())
	})

	It("binds the watermark into the query", func() {
		var got storage.ChangeQuery
		src := changeSource(
			func(_ context.Context, q storage.ChangeQuery) ([]*mission.Agent, error) {
				got = q
				return []*mission.Agent{{ID: "a", UpdatedAt: q.Since}}, nil
			},
			storage.ChangeQuery{OrgID: "org-1", BoardID: "board-1"},
			func(a *mission.Agent) stream.Change { return stream.Change{ID: a.ID, At: a.UpdatedAt} },
		)

		changes, err := src.Changes(context.Background(), storagetest.T0)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(storage.ChangeQuery{Since: storagetest.T0, OrgID: "org-1", BoardID: "board-1"}))
		Expect(changes).To(HaveLen(1))
	})

	It("wraps approvals, memory and comments in named frames", func() {
		f := newFixture(Config{})
		ctx := context.Background()

		Expect(f.driver.CreateApproval(ctx, &mission.Approval{ID: "ap-1", BoardID: f.boardID, ActionType: "x", Status: "pending", CreatedAt: storagetest.T0, UpdatedAt: storagetest.T0})).To(Succeed())
		Expect(f.driver.CreateMemory(ctx, &mission.MemoryItem{ID: "m-1", BoardID: f.boardID, Content: "hi", CreatedAt: storagetest.T0})).To(Succeed())
		Expect(f.driver.CreateActivity(ctx, &mission.ActivityEvent{ID: "c-1", OrgID: "org-1", BoardID: f.boardID, EventType: mission.EventTypeTaskComment, Message: "ok", CreatedAt: storagetest.T0})).To(Succeed())
		Expect(f.driver.CreateActivity(ctx, &mission.ActivityEvent{ID: "e-1", OrgID: "org-1", BoardID: f.boardID, EventType: mission.EventTypeTaskCreated, CreatedAt: storagetest.T0})).To(Succeed())

		q := storage.ChangeQuery{OrgID: "org-1", BoardID: f.boardID}
		frame := func(src stream.Source) string {
			changes, err := src.Changes(ctx, storagetest.T0)
			Expect(err).NotTo(HaveOccurred())
			Expect(changes).To(HaveLen(1))
			b, err := json.Marshal(changes[0].Payload)
			Expect(err).NotTo(HaveOccurred())
			return string(b)
		}

		Expect(frame(approvalChanges(f.driver, q))).To(HavePrefix(`{"approval":{"id":"ap-1"`))
		Expect(frame(memoryChanges(f.driver, q))).To(HavePrefix(`{"memory":{"id":"m-1"`))
		Expect(frame(commentChanges(f.driver, q))).To(HavePrefix(`{"comment":{"id":"c-1"`))
	})
})

var _ = Describe("Stream endpoints", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(Config{Stream: StreamConfig{Interval: 20 * time.Millisecond, MaxRetries: -1}})
	})

	It("rejects unauthenticated requests with JSON before any stream bytes", func() {
		for _, path := range []string{
			"/v1/agents/stream",
			"/v1/boards/board-1/approvals/stream",
			"/v1/boards/board-1/memory/stream",
			"/v1/activity/task-comments/stream",
		} {
			status, body := f.do(http.MethodGet, path, nil, nil)
			Expect(status).To(Equal(http.StatusUnauthorized), path)
			Expect(body).To(MatchJSON(`{"error":"unauthorized"}`), path)
		}
	})

	It("reports boards the caller cannot see", func() {
		status, _ := f.do(http.MethodGet, "/v1/boards/"+f.foreignBID+"/approvals/stream", f.user, nil)
		Expect(status).To(Equal(http.StatusNotFound))

		status, _ = f.do(http.MethodGet, "/v1/agents/stream?board_id="+f.foreignBID, f.user, nil)
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("closes with an error event when storage goes away", func() {
		Expect(f.driver.Close()).To(Succeed())

		status, body := f.do(http.MethodGet, "/v1/agents/stream", f.user, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal("event: error\ndata: {\"error\":\"stream source unavailable\"}\n\n"))
	})
})

// streamClient reads an event stream from a live server.
type streamClient struct {
	events chan *sse.Event
	pings  atomic.Int64
	header http.Header
	done   chan struct{}
}

func openStream(url string, h headers) *streamClient {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	Expect(err).NotTo(HaveOccurred())
	for k, v := range h {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	c := &streamClient{events: make(chan *sse.Event, 64), header: resp.Header, done: make(chan struct{})}
	reader := sse.NewTeeReader(resp.Body, io.Discard)
	reader.OnComment = func(text string) {
		if text == sse.PingComment {
			c.pings.Add(1)
		}
	}

	go func() {
		defer GinkgoRecover()
		defer close(c.done)
		defer resp.Body.Close()
		for {
			ev, err := reader.Next()
			if err != nil || ev == nil {
				return
			}
			c.events <- ev
		}
	}()
	return c
}

var _ = Describe("Streaming end to end", func() {
	var (
		f    *fixture
		base string
	)

	BeforeEach(func() {
		f = newFixture(Config{Stream: StreamConfig{Interval: 50 * time.Millisecond}})

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		base = "http://" + ln.Addr().String()

		go func() {
			defer GinkgoRecover()
			_ = f.server.Listener(ln)
		}()

		DeferCleanup(func() {
			Expect(f.server.Shutdown()).To(Succeed())
		})
	})

	It("emits an agent update once, then keeps the connection alive", func() {
		since := mission.Now().Add(-time.Second)
		client := openStream(base+"/v1/agents/stream?since="+since.Format(time.RFC3339Nano), f.user)
		Expect(client.header.Get("Content-Type")).To(HavePrefix(sse.ContentType))

		_, body := f.do(http.MethodPatch, "/v1/agents/"+f.agentID, f.user, map[string]string{"status": "busy"})
		Expect(decodeInto[mission.Agent](body).Status).To(Equal(mission.AgentStatusBusy))

		var ev *sse.Event
		Eventually(client.events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Type).To(Equal("update"))

		agent := decodeInto[mission.Agent]([]byte(ev.Data))
		Expect(agent.ID).To(Equal(f.agentID))
		Expect(agent.Status).To(Equal(mission.AgentStatusBusy))

		pings := client.pings.Load()
		Eventually(client.pings.Load, 2*time.Second).Should(BeNumerically(">=", pings+3))
		Consistently(client.events, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("never replays rows older than since", func() {
		client := openStream(base+"/v1/agents/stream", f.user)

		Consistently(client.events, 200*time.Millisecond).ShouldNot(Receive())
		Expect(client.pings.Load()).To(BeNumerically(">", 0))
	})

	It("streams chat memory only when asked", func() {
		client := openStream(base+"/v1/boards/"+f.boardID+"/memory/stream?is_chat=true", f.agent)

		f.do(http.MethodPost, "/v1/boards/"+f.boardID+"/memory", f.user, map[string]any{"content": "a note"})
		f.do(http.MethodPost, "/v1/boards/"+f.boardID+"/memory", f.user, map[string]any{"content": "hello", "is_chat": true})

		var ev *sse.Event
		Eventually(client.events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Type).To(Equal("memory"))
		Expect(ev.Data).To(ContainSubstring(`"content":"hello"`))
		Consistently(client.events, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("streams approval changes and task comments", func() {
		approvals := openStream(base+"/v1/boards/"+f.boardID+"/approvals/stream", f.user)
		comments := openStream(base+"/v1/activity/task-comments/stream?board_id="+f.boardID, f.user)

		_, body := f.do(http.MethodPost, "/v1/boards/"+f.boardID+"/approvals", f.agent, map[string]any{"action_type": "deploy"})
		ap := decodeInto[mission.Approval](body)

		var ev *sse.Event
		Eventually(approvals.events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Type).To(Equal("approval"))
		Expect(ev.Data).To(ContainSubstring(`"status":"pending"`))

		f.do(http.MethodPatch, "/v1/boards/"+f.boardID+"/approvals/"+ap.ID, f.user, map[string]string{"status": "approved"})
		Eventually(approvals.events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Data).To(ContainSubstring(`"status":"approved"`))

		_, body = f.do(http.MethodPost, "/v1/boards/"+f.boardID+"/tasks", f.user, map[string]string{"title": "t"})
		task := decodeInto[mission.Task](body)
		f.do(http.MethodPost, "/v1/boards/"+f.boardID+"/tasks/"+task.ID+"/comments", f.user, map[string]string{"message": "looks good"})

		Eventually(comments.events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Type).To(Equal("comment"))
		Expect(ev.Data).To(ContainSubstring("looks good"))

		// task.created is activity but not a comment.
		Consistently(comments.events, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("ends open streams on shutdown", func() {
		client := openStream(base+"/v1/agents/stream", f.user)
		Eventually(client.pings.Load, time.Second).Should(BeNumerically(">", 0))

		f.server.cancel()
		Eventually(client.done, 2*time.Second).Should(BeClosed())
	})
})
