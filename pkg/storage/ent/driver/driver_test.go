package entdriver

import (
	entsql "entgo.io/ent/dialect/sql"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("where", func() {
	build := func(orgID, boardID, status string) (string, []any) {
		sel := entsql.Select("id").From(entsql.Table("agents"))
		return where(sel, []column{
			{"org_id", orgID},
			{"board_id", boardID},
			{"status", status},
		}).Query()
	}

	It("renders predicates in declaration order every time", func() {
		first, args := build("org-1", "board-1", "online")
		Expect(args).To(Equal([]any{"org-1", "board-1", "online"}))

		for range 50 {
			q, _ := build("org-1", "board-1", "online")
			Expect(q).To(Equal(first))
		}
	})

	It("skips empty values", func() {
		q, args := build("org-1", "", "online")
		Expect(q).NotTo(ContainSubstring("board_id"))
		Expect(args).To(Equal([]any{"org-1", "online"}))
	})
})
