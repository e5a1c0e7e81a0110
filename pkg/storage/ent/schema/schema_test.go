package schema_test

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/storage/ent/schema"
)

type broken struct{ ent.Schema }

func (broken) Fields() []ent.Field  { return []ent.Field{field.String("id")} }
func (broken) Indexes() []ent.Index { return []ent.Index{index.Fields("missing")} }

var _ = Describe("Tables", func() {
	It("keys every table on id", func() {
		for _, t := range schema.Tables {
			Expect(t.PrimaryKey).To(HaveLen(1), t.Name)
			Expect(t.PrimaryKey[0].Name).To(Equal("id"), t.Name)
		}
	})

	It("maps field builders onto columns", func() {
		col, ok := schema.Agents.Column("last_seen_at")
		Expect(ok).To(BeTrue())
		Expect(col.Nullable).To(BeTrue())
		Expect(col.Type).To(Equal(field.TypeString))
		Expect(col.Size).To(BeNumerically("==", 32))

		col, ok = schema.Approvals.Column("confidence")
		Expect(ok).To(BeTrue())
		Expect(col.Type).To(Equal(field.TypeFloat64))

		col, ok = schema.Memory.Column("is_chat")
		Expect(ok).To(BeTrue())
		Expect(col.Type).To(Equal(field.TypeBool))
		Expect(col.Default).To(Equal(false))

		col, ok = schema.Boards.Column("org_id")
		Expect(ok).To(BeTrue())
		Expect(col.Nullable).To(BeFalse())
		Expect(col.Default).To(Equal(""))
	})

	It("names indexes after the table and columns", func() {
		var names []string
		for _, idx := range schema.Agents.Indexes {
			names = append(names, idx.Name)
		}
		Expect(names).To(Equal([]string{
			"agents_org_id_updated_at",
			"agents_board_id_updated_at",
			"agents_token_hash",
		}))
		Expect(schema.Activity.Indexes[1].Columns[0].Name).To(Equal("board_id"))
	})

	It("panics on an index over an unknown column", func() {
		Expect(func() { schema.NewTable("broken", broken{}) }).To(Panic())
	})
})
