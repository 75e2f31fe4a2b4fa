package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

var _ = Describe("dotdir.Manager selection", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing is selected", func() {
		sel, err := m.LoadSelection(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(sel).To(BeNil())
	})

	It("round-trips a selection", func() {
		want := &dotdir.Selection{ConversationID: "c-1", UserID: "u-1", Title: "Psaume 23"}
		Expect(m.SaveSelection(want, tmpDir)).To(Succeed())

		got, err := m.LoadSelection(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("refuses an empty selection", func() {
		Expect(m.SaveSelection(nil, tmpDir)).NotTo(Succeed())
		Expect(m.SaveSelection(&dotdir.Selection{}, tmpDir)).NotTo(Succeed())
	})

	It("returns error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "selection.json"), []byte("not json"), 0o600)).To(Succeed())

		sel, err := m.LoadSelection(tmpDir)
		Expect(err).To(HaveOccurred())
		Expect(sel).To(BeNil())
	})

	It("clears the selection and tolerates clearing twice", func() {
		Expect(m.SaveSelection(&dotdir.Selection{ConversationID: "c-1"}, tmpDir)).To(Succeed())
		Expect(m.ClearSelection(tmpDir)).To(Succeed())
		Expect(m.ClearSelection(tmpDir)).To(Succeed())

		sel, err := m.LoadSelection(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(sel).To(BeNil())
	})
})
