package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/missioncontrol/cmd/mc/init"
	"github.com/papercomputeco/missioncontrol/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var tmpDir string

	run := func(args ...string) (string, error) {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs(args)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SilenceUsage = true
		err := cmd.Execute()
		return out.String(), err
	}

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".missioncontrol", "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{}
		_, err = toml.Decode(string(data), cfg)
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "mc-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		DeferCleanup(func() {
			Expect(os.Chdir(origDir)).To(Succeed())
			os.RemoveAll(tmpDir)
		})
	})

	It("writes the local preset with a generated secret", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Initialized"))

		cfg := readConfig()
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Auth.JWTSecret).To(HaveLen(64))
	})

	It("writes the postgres preset", func() {
		_, err := run("--preset", "postgres")
		Expect(err).NotTo(HaveOccurred())

		cfg := readConfig()
		Expect(cfg.Storage.Driver).To(Equal("postgres"))
		Expect(cfg.EventStream.Provider).To(Equal("kafka"))
	})

	It("leaves an existing config alone", func() {
		_, err := run()
		Expect(err).NotTo(HaveOccurred())
		secret := readConfig().Auth.JWTSecret

		out, err := run("--preset", "postgres")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Already initialized"))
		Expect(readConfig().Auth.JWTSecret).To(Equal(secret))
		Expect(readConfig().Storage.Driver).To(Equal("sqlite"))
	})

	It("rejects unknown presets", func() {
		_, err := run("--preset", "cloud")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})
})
