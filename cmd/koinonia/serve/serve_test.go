package servecmder_test

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	servecmder "github.com/papercomputeco/koinonia/cmd/koinonia/serve"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer l.Close()
	return l.Addr().String()
}

var _ = Describe("Serve command", func() {
	var configDir string

	newCmd := func(args ...string) *cobra.Command {
		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .koinonia/ config directory")
		cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
		cmd.SetOut(GinkgoWriter)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append(args, "--config-dir", configDir))
		return cmd
	}

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
	})

	It("registers the listen and storage flags", func() {
		cmd := servecmder.NewServeCmd()
		for _, name := range []string{"listen", "storage", "sqlite", "postgres-dsn", "remote-target", "log-file"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("serves the API until the context is canceled", func() {
		addr := freeAddr()
		logFile := filepath.Join(GinkgoT().TempDir(), "serve.log")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- newCmd("--listen", addr, "--log-file", logFile).ExecuteContext(ctx)
		}()

		Eventually(func() int {
			resp, err := http.Get("http://" + addr + "/ping")
			if err != nil {
				return 0
			}
			defer resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"starting API server"`))
	})

	It("fails on an unknown storage driver", func() {
		Expect(newCmd("--storage", "cassette").Execute()).To(MatchError(ContainSubstring("unsupported storage driver")))
	})

	It("fails when the log file cannot be opened", func() {
		err := newCmd("--listen", freeAddr(), "--log-file", filepath.Join(configDir, "missing", "serve.log")).Execute()
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
