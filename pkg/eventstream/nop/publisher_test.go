package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var (
		ctx context.Context
		p   *nop.Publisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = nop.NewPublisher()
	})

	It("rejects nil events", func() {
		Expect(p.Publish(ctx, nil)).To(MatchError(eventstream.ErrNilChangeEvent))
		Expect(p.Published()).To(BeZero())
	})

	It("counts accepted events", func() {
		Expect(p.Publish(ctx, &eventstream.ChangeEvent{EventType: "task.created"})).To(Succeed())
		Expect(p.Publish(ctx, &eventstream.ChangeEvent{EventType: "task.updated"})).To(Succeed())
		Expect(p.Published()).To(BeEquivalentTo(2))
	})

	It("rejects events after Close", func() {
		Expect(p.Close()).To(Succeed())
		Expect(p.Publish(ctx, &eventstream.ChangeEvent{})).To(MatchError(eventstream.ErrPublisherClosed))
	})
})
