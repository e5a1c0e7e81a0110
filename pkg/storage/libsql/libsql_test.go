//go:build libsql

package libsql_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/libsql"
	"github.com/papercomputeco/missioncontrol/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		url := "file:" + filepath.Join(GinkgoT().TempDir(), "mc.db")
		d, err := libsql.NewDriver(context.Background(), url, "")
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})

var _ = Describe("DSN", func() {
	It("attaches the auth token to remote urls", func() {
		dsn, err := libsql.DSN("libsql://mc-acme.turso.io", "secret")
		Expect(err).NotTo(HaveOccurred())
		Expect(dsn).To(Equal("libsql://mc-acme.turso.io?authToken=secret"))
	})

	It("passes local file urls through", func() {
		dsn, err := libsql.DSN("file:/var/lib/mc/mc.db", "ignored")
		Expect(err).NotTo(HaveOccurred())
		Expect(dsn).To(Equal("file:/var/lib/mc/mc.db"))
	})

	It("rejects empty and unknown urls", func() {
		_, err := libsql.DSN("", "")
		Expect(err).To(HaveOccurred())

		_, err = libsql.DSN("mysql://localhost/db", "")
		Expect(err).To(MatchError(ContainSubstring("unsupported libsql url scheme")))
	})
})
