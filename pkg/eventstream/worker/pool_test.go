package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
)

// recordingPublisher collects published events. block, when set, holds
// every Publish until it is closed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ChangeEvent
	block  chan struct{}
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, e *eventstream.ChangeEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingPublisher) published() []*eventstream.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.ChangeEvent(nil), r.events...)
}

func testEvent(id string) *eventstream.ChangeEvent {
	return eventstream.NewChangeEvent(eventstream.EntityTask, eventstream.VerbCreated, id,
		eventstream.EventSource{OrgID: "org-1", BoardID: "board-1"}, nil)
}

var _ = Describe("Worker Pool", func() {
	var pub *recordingPublisher

	BeforeEach(func() {
		pub = &recordingPublisher{}
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies defaults", func() {
		wp, err := NewPool(&Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		Expect(wp.config.NumWorkers).To(Equal(defaultNumWorkers))
		Expect(wp.config.QueueSize).To(Equal(defaultJobQueueSize))
		Expect(wp.Close()).To(Succeed())
	})

	It("publishes every queued event before Close returns", func() {
		wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 2})
		Expect(err).NotTo(HaveOccurred())

		for _, id := range []string{"t1", "t2", "t3"} {
			Expect(wp.Enqueue(testEvent(id))).To(BeTrue())
		}
		Expect(wp.Close()).To(Succeed())

		ids := []string{}
		for _, e := range pub.published() {
			ids = append(ids, e.EntityID)
		}
		Expect(ids).To(ConsistOf("t1", "t2", "t3"))
		Expect(pub.closed).To(BeTrue())
	})

	It("drops events when the queue is full", func() {
		pub.block = make(chan struct{})
		wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// The first event occupies the worker, the second fills the queue.
		Expect(wp.Enqueue(testEvent("t1"))).To(BeTrue())
		Eventually(func() int { return len(wp.queue) }).Should(Equal(0))
		Expect(wp.Enqueue(testEvent("t2"))).To(BeTrue())
		Expect(wp.Enqueue(testEvent("t3"))).To(BeFalse())

		close(pub.block)
		Expect(wp.Close()).To(Succeed())
		Expect(pub.published()).To(HaveLen(2))
	})

	It("keeps running when a publish fails", func() {
		pub.err = errors.New("broker down")
		wp, err := NewPool(&Config{Publisher: pub, NumWorkers: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(testEvent("t1"))).To(BeTrue())
		Expect(wp.Enqueue(testEvent("t2"))).To(BeTrue())
		Expect(wp.Close()).To(Succeed())
		Expect(pub.published()).To(BeEmpty())
	})

	It("rejects events after Close", func() {
		wp, err := NewPool(&Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())
		Expect(wp.Close()).To(Succeed())
		Expect(wp.Close()).To(Succeed())

		Expect(wp.Enqueue(testEvent("late"))).To(BeFalse())
		Expect(wp.Enqueue(nil)).To(BeFalse())
	})
})
