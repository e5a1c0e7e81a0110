package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

var _ = Describe("Truncate", func() {
	DescribeTable("shortens long strings",
		func(in string, limit int, want string) {
			Expect(utils.Truncate(in, limit)).To(Equal(want))
		},
		Entry("within the limit", "short", 10, "short"),
		Entry("exactly at the limit", "12345", 5, "12345"),
		Entry("over the limit", "this is a long string", 10, "this is a ..."),
		Entry("multi-byte runes", "héllo wörld", 4, "héll..."),
		Entry("no limit", "anything goes", 0, "anything goes"),
	)
})
