package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
	"github.com/papercomputeco/missioncontrol/pkg/mission"
)

var _ = Describe("ChangeEvent", func() {
	It("marshals with the expected top-level keys", func() {
		event := eventstream.NewChangeEvent(
			eventstream.EntityApproval,
			eventstream.VerbUpdated,
			"appr-1",
			eventstream.EventSource{OrgID: "org-1", BoardID: "board-1", ActorType: "user", ActorID: "user-1"},
			&mission.Approval{ID: "appr-1", Status: mission.ApprovalStatusApproved},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		for _, key := range []string{"schema_version", "event_type", "event_id", "emitted_at", "source", "entity", "entity_id", "payload"} {
			Expect(got).To(HaveKey(key))
		}
		Expect(got["event_type"]).To(Equal("mission.approval.updated"))
	})

	It("assigns a unique id per event", func() {
		a := eventstream.NewChangeEvent(eventstream.EntityTask, eventstream.VerbCreated, "t", eventstream.EventSource{}, nil)
		b := eventstream.NewChangeEvent(eventstream.EntityTask, eventstream.VerbCreated, "t", eventstream.EventSource{}, nil)
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
	})

	It("partitions by board, falling back to the organization", func() {
		e := &eventstream.ChangeEvent{Source: eventstream.EventSource{OrgID: "org-1", BoardID: "board-1"}}
		Expect(e.PartitionKey()).To(Equal("board-1"))

		e.Source.BoardID = ""
		Expect(e.PartitionKey()).To(Equal("org-1"))
	})

	It("provides ErrNilChangeEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilChangeEvent).To(MatchError("nil change event"))
	})
})
