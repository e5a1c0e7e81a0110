package gatewaycmder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	gatewaycmder "github.com/papercomputeco/missioncontrol/cmd/mc/gateway"
	"github.com/papercomputeco/missioncontrol/pkg/gateway"
	"github.com/papercomputeco/missioncontrol/pkg/gateway/gatewaytest"
)

var _ = Describe("gateway pairs", func() {
	var (
		tmpDir string
		server *gatewaytest.Server
	)

	created := time.UnixMilli(1767225600000)
	approved := time.UnixMilli(1767229200000)

	run := func(args ...string) (string, error) {
		cmd := gatewaycmder.NewGatewayCmd()
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetArgs(append([]string{"pairs"}, append(args, "--config-dir", tmpDir)...))
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SilenceUsage = true
		err := cmd.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mc-gateway-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		server = gatewaytest.NewServer("s3cret", gateway.NodePairs{
			Pending: []gateway.PendingRequest{
				{RequestID: "req-1", NodeID: "node-a", Platform: "darwin", CreatedAtMs: created.UnixMilli()},
			},
			Paired: []gateway.PairedNode{
				{NodeID: "node-b", DisplayName: "Build box", Token: "abcdefghijklmnopqrstuvwxyz", ApprovedAtMs: approved.UnixMilli()},
			},
		})
		DeferCleanup(server.Close)
	})

	It("prints pending requests and paired nodes", func() {
		out, err := run(server.WSURL(), "--token", "s3cret")
		Expect(err).NotTo(HaveOccurred())

		Expect(out).To(ContainSubstring("Gateway: " + server.WSURL() + "/rpc"))
		Expect(out).To(ContainSubstring("node-a"))
		Expect(out).To(ContainSubstring("req-1"))
		Expect(out).To(ContainSubstring("darwin"))
		Expect(out).To(ContainSubstring(created.Format(time.DateTime)))
		Expect(out).To(ContainSubstring("Build box"))
		Expect(out).To(ContainSubstring("abcdefghijklmnopqrst..."))
		Expect(out).NotTo(ContainSubstring("uvwxyz"))
		Expect(out).To(ContainSubstring(approved.Format(time.DateTime)))

		Expect(server.Requests()).To(ConsistOf("/rpc?token=s3cret"))
	})

	It("prints None for empty lists", func() {
		empty := gatewaytest.NewServer("s3cret", gateway.NodePairs{})
		DeferCleanup(empty.Close)

		out, err := run(empty.WSURL()+"/rpc", "--token", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Pending node pairing requests:\n  - None"))
		Expect(out).To(ContainSubstring("Paired nodes:\n  - None"))
	})

	It("reads the gateway from config.toml", func() {
		cfg := "[gateway]\nurl = \"" + server.WSURL() + "\"\ntoken = \"s3cret\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(cfg), 0o600)).To(Succeed())

		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Build box"))
	})

	It("fails on a rejected token", func() {
		_, err := run(server.WSURL(), "--token", "wrong")
		Expect(err).To(MatchError(gateway.ErrHandshake))
	})

	It("requires a URL and a token", func() {
		_, err := run("--token", "s3cret")
		Expect(err).To(MatchError(ContainSubstring("gateway URL is required")))

		_, err = run(server.WSURL())
		Expect(err).To(MatchError(ContainSubstring("gateway token is required")))
	})
})
