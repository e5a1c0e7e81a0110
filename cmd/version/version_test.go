package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/missioncontrol/cmd/version"
	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

var _ = Describe("version", func() {
	run := func(args ...string) string {
		cmd := versioncmder.NewVersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("prints build information", func() {
		out := run()
		Expect(out).To(ContainSubstring(utils.Version))
		Expect(out).To(ContainSubstring("commit: " + utils.Sha))
	})

	It("prints only the version with --short", func() {
		Expect(run("--short")).To(Equal(utils.Version + "\n"))
	})
})
