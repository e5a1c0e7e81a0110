package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/sqlite"
	"github.com/papercomputeco/missioncontrol/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		d, err := sqlite.NewDriver(context.Background(), sqlite.MemoryPath)
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps data across reopen and re-migration", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.CreateBoard(ctx, storagetest.Board("board-1", "org-1"))).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.GetBoard(ctx, "board-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.OrgID).To(Equal("org-1"))
		})
	})
})
