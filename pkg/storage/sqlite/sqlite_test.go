package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
	"github.com/papercomputeco/koinonia/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/koinonia/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	Context("in memory", func() {
		testutils.DescribeDriverConformance(func() storage.Driver {
			d, err := sqlite.NewDriver(context.Background(), ":memory:")
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	Context("on disk", func() {
		testutils.DescribeDriverConformance(func() storage.Driver {
			d, err := sqlite.NewDriver(context.Background(), filepath.Join(GinkgoT().TempDir(), "koinonia.db"))
			Expect(err).NotTo(HaveOccurred())
			return d
		})
	})

	It("creates the database file and reopens it with its data", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "koinonia.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())

		id, err := d.CreateConversation(ctx, "u-1", "Genèse")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.AppendMessage(ctx, id, llm.RoleUser, "Au commencement")).To(Succeed())
		Expect(d.Close()).To(Succeed())

		Expect(dbPath).To(BeAnExistingFile())

		d, err = sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		msgs, err := d.ListMessages(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("Au commencement"))
	})
})
