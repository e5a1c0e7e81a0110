package stream_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/stream"
)

const interval = 2 * time.Second

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

// syncBuffer lets the test goroutine read what the stream goroutine wrote.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) count(s string) int {
	return strings.Count(b.String(), s)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

type row struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

// fakeTable serves rows at or after since, and records every since it was
// asked for.
type fakeTable struct {
	mu     sync.Mutex
	rows   []stream.Change
	sinces []time.Time
	errs   []error
}

func (f *fakeTable) put(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, stream.Change{ID: id, At: at, Payload: row{ID: id, At: at}})
}

func (f *fakeTable) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

func (f *fakeTable) Changes(_ context.Context, since time.Time) ([]stream.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sinces = append(f.sinces, since)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}

	var out []stream.Change
	for _, c := range f.rows {
		if !c.At.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeTable) polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinces)
}

func (f *fakeTable) polledSince() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.sinces...)
}

var _ = Describe("Stream", func() {
	var (
		t0     time.Time
		clk    *testclock.Clock
		table  *fakeTable
		out    *syncBuffer
		ctx    context.Context
		cancel context.CancelFunc
		done   chan error
	)

	BeforeEach(func() {
		t0 = mustTime("2026-03-01T10:00:00Z")
		clk = testclock.NewClock(t0)
		table = &fakeTable{}
		out = &syncBuffer{}
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
	})

	AfterEach(func() {
		cancel()
	})

	start := func(cfg stream.Config, src stream.Source) *stream.Stream {
		cfg.Clock = clk
		cfg.Interval = interval
		if cfg.Event == "" {
			cfg.Event = "update"
		}
		s, err := stream.New(src, cfg)
		Expect(err).NotTo(HaveOccurred())

		go func() {
			defer GinkgoRecover()
			done <- s.Run(ctx, t0, out)
		}()
		return s
	}

	// cycle waits for the loop to block on the clock, then releases it and
	// waits for the next poll's keep-alive.
	cycle := func() {
		pings := out.count(": ping\n\n")
		Expect(clk.WaitAdvance(interval, time.Second, 1)).To(Succeed())
		Eventually(func() int { return out.count(": ping\n\n") }).Should(BeNumerically(">", pings))
	}

	waitFirstPoll := func() {
		Eventually(func() int { return out.count(": ping\n\n") }).Should(Equal(1))
	}

	stop := func() error {
		cancel()
		var err error
		Eventually(done).Should(Receive(&err))
		return err
	}

	Describe("New", func() {
		It("requires a source", func() {
			_, err := stream.New(nil, stream.Config{Event: "update"})
			Expect(err).To(HaveOccurred())
		})

		It("rejects event names that would break framing", func() {
			_, err := stream.New(table, stream.Config{Event: "bad\nname"})
			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown eviction policies", func() {
			_, err := stream.New(table, stream.Config{Event: "update", Eviction: "fifo"})
			Expect(err).To(MatchError(ContainSubstring("unknown eviction policy")))
		})
	})

	It("writes a keep-alive every interval even when nothing changed", func() {
		start(stream.Config{}, table)
		waitFirstPoll()

		cycle()
		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.String()).To(Equal(strings.Repeat(": ping\n\n", 3)))
	})

	It("emits a changed row once and then only pings", func() {
		table.put("agent-1", t0.Add(time.Second))
		start(stream.Config{}, table)
		waitFirstPoll()

		cycle()
		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.count("event: update\n")).To(Equal(1))
		Expect(out.String()).To(HavePrefix("event: update\ndata: {\"id\":\"agent-1\""))
		Expect(out.count(": ping\n\n")).To(Equal(3))
	})

	It("emits rows written after the stream started", func() {
		start(stream.Config{}, table)
		waitFirstPoll()

		table.put("agent-1", t0.Add(3*time.Second))
		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.String()).To(Equal(": ping\n\nevent: update\ndata: " +
			`{"id":"agent-1","at":"2026-03-01T10:00:03Z"}` + "\n\n: ping\n\n"))
	})

	It("re-emits a row when its version timestamp changes", func() {
		table.put("agent-1", t0.Add(time.Second))
		start(stream.Config{}, table)
		waitFirstPoll()

		table.put("agent-1", t0.Add(5*time.Second))
		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.count("event: update\n")).To(Equal(2))
	})

	It("suppresses later versions when keyed by id", func() {
		table.put("agent-1", t0.Add(time.Second))
		start(stream.Config{Key: stream.KeyByID}, table)
		waitFirstPoll()

		table.put("agent-1", t0.Add(5*time.Second))
		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.count("event: update\n")).To(Equal(1))
	})

	It("never emits rows older than since", func() {
		src := stream.SourceFunc(func(context.Context, time.Time) ([]stream.Change, error) {
			return []stream.Change{
				{ID: "old", At: t0.Add(-time.Minute), Payload: row{ID: "old"}},
				{ID: "new", At: t0.Add(time.Minute), Payload: row{ID: "new"}},
			}, nil
		})
		start(stream.Config{}, src)
		waitFirstPoll()

		Expect(stop()).To(Succeed())
		Expect(out.String()).NotTo(ContainSubstring(`"old"`))
		Expect(out.count("event: update\n")).To(Equal(1))
	})

	It("advances the watermark monotonically", func() {
		table.put("a", t0.Add(2*time.Second))
		table.put("b", t0.Add(1*time.Second))
		s := start(stream.Config{}, table)
		waitFirstPoll()

		cycle()
		table.put("c", t0.Add(10*time.Second))
		cycle()
		cycle()

		Expect(stop()).To(Succeed())

		sinces := table.polledSince()
		Expect(sinces).To(HaveLen(4))
		Expect(sinces[0]).To(Equal(t0))
		for i := 1; i < len(sinces); i++ {
			Expect(sinces[i].Before(sinces[i-1])).To(BeFalse())
		}
		Expect(sinces[1]).To(Equal(t0.Add(2 * time.Second)))
		Expect(sinces[3]).To(Equal(t0.Add(10 * time.Second)))
		Expect(s.Stats().Watermark).To(Equal(t0.Add(10 * time.Second)))
		Expect(s.Stats().Emitted).To(Equal(3))
	})

	It("stops polling once the request is cancelled", func() {
		start(stream.Config{}, table)
		waitFirstPoll()

		Expect(stop()).To(Succeed())
		clk.Advance(10 * interval)
		Consistently(table.polls, 50*time.Millisecond).Should(Equal(1))
	})

	It("clears the window past its capacity with no re-emission of distinct rows", func() {
		for i := range stream.DefaultWindowSize + 1 {
			table.put(fmt.Sprintf("row-%d", i), t0.Add(time.Duration(i+1)*time.Microsecond))
		}
		s := start(stream.Config{}, table)
		waitFirstPoll()

		cycle()

		Expect(stop()).To(Succeed())
		Expect(out.count("event: update\n")).To(Equal(stream.DefaultWindowSize + 1))
		Expect(s.Stats().Suppressed).To(Equal(1))
	})

	DescribeTable("emits a burst sharing one timestamp exactly once across polls",
		func(policy stream.EvictionPolicy) {
			burst := stream.DefaultWindowSize + 500
			for i := range burst {
				table.put(fmt.Sprintf("row-%d", i), t0.Add(time.Second))
			}
			s := start(stream.Config{Eviction: policy}, table)
			waitFirstPoll()

			cycle()
			cycle()
			cycle()

			Expect(stop()).To(Succeed())
			Expect(s.Stats().Emitted).To(Equal(burst))
			Expect(out.count("event: update\n")).To(Equal(burst))
			Expect(s.Stats().Suppressed).To(Equal(3 * burst))
		},
		Entry("clear", stream.EvictClear),
		Entry("lru", stream.EvictLRU),
	)

	It("keeps suppressing rows at since after later rows arrive", func() {
		for i := range stream.DefaultWindowSize + 1 {
			table.put(fmt.Sprintf("row-%d", i), t0)
		}
		s := start(stream.Config{}, table)
		waitFirstPoll()

		cycle()
		table.put("late", t0.Add(time.Second))
		cycle()
		cycle()

		Expect(stop()).To(Succeed())
		Expect(s.Stats().Emitted).To(Equal(stream.DefaultWindowSize + 2))
	})

	It("skips rows whose payload cannot be encoded", func() {
		src := stream.SourceFunc(func(context.Context, time.Time) ([]stream.Change, error) {
			return []stream.Change{
				{ID: "bad", At: t0, Payload: func() {}},
				{ID: "good", At: t0, Payload: row{ID: "good"}},
			}, nil
		})
		start(stream.Config{}, src)
		waitFirstPoll()

		Expect(stop()).To(Succeed())
		Expect(out.count("event: update\n")).To(Equal(1))
		Expect(out.String()).To(ContainSubstring(`"good"`))
	})

	It("stops silently when the client goes away", func() {
		table.put("agent-1", t0.Add(time.Second))
		s, err := stream.New(table, stream.Config{Event: "update", Clock: clk})
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Run(ctx, t0, brokenWriter{})).To(Succeed())
		Expect(table.polls()).To(Equal(1))
	})

	Describe("source failures", func() {
		It("retries transient failures on the next cycle", func() {
			table.put("agent-1", t0.Add(time.Second))
			table.failNext(errors.New("database is locked"))
			start(stream.Config{}, table)
			waitFirstPoll()

			cycle()

			Expect(stop()).To(Succeed())
			Expect(out.count("event: update\n")).To(Equal(1))
			Expect(out.String()).NotTo(ContainSubstring("event: error"))
		})

		It("closes with an error event after exhausting retries", func() {
			boom := errors.New("connection refused")
			table.failNext(boom, boom, boom)
			start(stream.Config{MaxRetries: 2}, table)
			waitFirstPoll()

			cycle()
			Expect(clk.WaitAdvance(interval, time.Second, 1)).To(Succeed())

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).To(MatchError(stream.ErrSourceUnavailable))
			Expect(err).To(MatchError(boom))
			Expect(out.String()).To(HaveSuffix("event: error\ndata: {\"error\":\"stream source unavailable\"}\n\n"))
			Expect(table.polls()).To(Equal(3))
		})

		It("closes immediately on a fatal failure", func() {
			s, err := stream.New(table, stream.Config{Event: "update", Clock: clk})
			Expect(err).NotTo(HaveOccurred())
			table.failNext(stream.Fatal(errors.New("storage closed")))

			buf := &syncBuffer{}
			err = s.Run(ctx, t0, buf)
			Expect(err).To(MatchError(stream.ErrSourceUnavailable))
			Expect(buf.String()).To(Equal("event: error\ndata: {\"error\":\"stream source unavailable\"}\n\n"))
			Expect(s.Stats().Failures).To(Equal(1))
		})

		It("closes on the first failure when retries are disabled", func() {
			s, err := stream.New(table, stream.Config{Event: "update", Clock: clk, MaxRetries: -1})
			Expect(err).NotTo(HaveOccurred())
			table.failNext(errors.New("timeout"))

			Expect(s.Run(ctx, t0, &syncBuffer{})).To(MatchError(stream.ErrSourceUnavailable))
		})
	})
})
