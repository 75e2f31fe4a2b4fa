package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewManager", func() {
		It("targets credentials.toml in the override directory", func() {
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds).NotTo(BeNil())
			Expect(creds.Profiles).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[profiles.default]
token = "tok-123"
user_id = "u-1"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte(data), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Profiles).To(HaveKey("default"))
			Expect(creds.Profiles["default"].Token).To(Equal("tok-123"))
			Expect(creds.Profiles["default"].UserID).To(Equal("u-1"))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "credentials.toml"), []byte("not valid [[["), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).To(HaveOccurred())
			Expect(creds).To(BeNil())
		})
	})

	Describe("Save", func() {
		It("persists credentials to disk with restricted permissions", func() {
			err := mgr.Save(&credentials.Credentials{
				Profiles: map[string]credentials.Profile{"default": {Token: "tok"}},
			})
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(filepath.Join(tmpDir, "credentials.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil credentials", func() {
			Expect(mgr.Save(nil)).NotTo(Succeed())
		})
	})

	Describe("profiles", func() {
		It("stores and overwrites a profile", func() {
			Expect(mgr.SetProfile("", credentials.Profile{Token: "old"})).To(Succeed())
			Expect(mgr.SetProfile("", credentials.Profile{Token: "new", UserID: "u-1"})).To(Succeed())

			p, err := mgr.GetProfile(credentials.DefaultProfile)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(credentials.Profile{Token: "new", UserID: "u-1"}))
		})

		It("preserves other profiles", func() {
			Expect(mgr.SetProfile("work", credentials.Profile{Token: "w"})).To(Succeed())
			Expect(mgr.SetProfile("home", credentials.Profile{Token: "h"})).To(Succeed())

			names, err := mgr.ListProfiles()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"home", "work"}))
		})

		It("returns a zero profile for an unknown name", func() {
			p, err := mgr.GetProfile("nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Token).To(BeEmpty())
		})

		It("removes a profile and tolerates removing a missing one", func() {
			Expect(mgr.SetProfile("work", credentials.Profile{Token: "w"})).To(Succeed())
			Expect(mgr.RemoveProfile("work")).To(Succeed())
			Expect(mgr.RemoveProfile("work")).To(Succeed())

			names, err := mgr.ListProfiles()
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})
	})
})
