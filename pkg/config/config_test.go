package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	load := func() *config.Config {
		c, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := c.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			Expect(load()).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[storage]
driver = "postgres"
sqlite_path = "/tmp/koinonia.sqlite"
postgres_dsn = "postgres://localhost/koinonia"
remote_target = "http://store:8081"

[upstream]
base_url = "http://localhost:11434/v1"
model = "llama3.2"
idle_timeout = "90s"
system_prompt = "Tu es un guide."

[api]
listen = ":9091"

[client]
user_id = "marie"
api_target = "http://myhost:9091"

[eventstream]
provider = "kafka"
brokers = ["kafka-1:9092", "kafka-2:9092"]
topic = "turns"
`)

			cfg := load()
			Expect(cfg.Storage).To(Equal(config.StorageConfig{
				Driver:       "postgres",
				SQLitePath:   "/tmp/koinonia.sqlite",
				PostgresDSN:  "postgres://localhost/koinonia",
				RemoteTarget: "http://store:8081",
			}))
			Expect(cfg.Upstream).To(Equal(config.UpstreamConfig{
				BaseURL:      "http://localhost:11434/v1",
				Model:        "llama3.2",
				IdleTimeout:  "90s",
				SystemPrompt: "Tu es un guide.",
			}))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Client.UserID).To(Equal("marie"))
			Expect(cfg.Client.APITarget).To(Equal("http://myhost:9091"))
			Expect(cfg.EventStream.Provider).To(Equal("kafka"))
			Expect(cfg.EventStream.Brokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
			Expect(cfg.EventStream.Topic).To(Equal("turns"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[upstream]
model = "llama3.2"
`)

			cfg := load()
			defaults := config.NewDefaultConfig()
			Expect(cfg.Upstream.Model).To(Equal("llama3.2"))
			Expect(cfg.Upstream.BaseURL).To(Equal(defaults.Upstream.BaseURL))
			Expect(cfg.Upstream.IdleTimeout).To(Equal(defaults.Upstream.IdleTimeout))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Client).To(Equal(defaults.Client))
			Expect(cfg.EventStream.Provider).To(Equal(defaults.EventStream.Provider))
		})

		It("returns an error for invalid TOML", func() {
			writeConfig("not valid [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveConfig", func() {
		It("writes a config that loads back unchanged", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLitePath = "/data/koinonia.db"
			cfg.EventStream.Brokers = []string{"localhost:9092"}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			Expect(load()).To(Equal(cfg))
		})

		It("refuses a nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("round-trips every key",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())

				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry("storage.driver", "storage.driver", "remote"),
			Entry("storage.sqlite_path", "storage.sqlite_path", "/tmp/k.db"),
			Entry("storage.postgres_dsn", "storage.postgres_dsn", "postgres://db/koinonia"),
			Entry("storage.remote_target", "storage.remote_target", "http://store:8081"),
			Entry("upstream.base_url", "upstream.base_url", "http://localhost:11434/v1"),
			Entry("upstream.model", "upstream.model", "llama3.2"),
			Entry("upstream.idle_timeout", "upstream.idle_timeout", "2m"),
			Entry("upstream.system_prompt", "upstream.system_prompt", "Sois bref."),
			Entry("api.listen", "api.listen", ":9000"),
			Entry("client.user_id", "client.user_id", "marie"),
			Entry("client.api_target", "client.api_target", "http://remote:9000"),
			Entry("eventstream.provider", "eventstream.provider", "kafka"),
			Entry("eventstream.brokers", "eventstream.brokers", "a:9092,b:9092"),
			Entry("eventstream.topic", "eventstream.topic", "turns"),
		)

		It("persists values across configers", func() {
			Expect(c.SetConfigValue("upstream.model", "llama3.2")).To(Succeed())
			Expect(load().Upstream.Model).To(Equal("llama3.2"))
		})

		It("normalizes a broker list", func() {
			Expect(c.SetConfigValue("eventstream.brokers", " a:9092, ,b:9092 ")).To(Succeed())
			Expect(load().EventStream.Brokers).To(Equal([]string{"a:9092", "b:9092"}))
		})

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("proxy.upstream")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring("invalid value for " + key)))
			},
			Entry("unknown driver", "storage.driver", "mongo"),
			Entry("unparsable duration", "upstream.idle_timeout", "soon"),
			Entry("unknown event provider", "eventstream.provider", "nats"),
		)
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(14))
			Expect(keys[0]).To(Equal("storage.driver"))
			Expect(keys[len(keys)-1]).To(Equal("eventstream.topic"))

			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("")).To(BeFalse())
			Expect(config.IsValidConfigKey("embedding.model")).To(BeFalse())
		})
	})
})

var _ = Describe("UpstreamConfig.IdleTimeoutDuration", func() {
	It("parses the configured duration", func() {
		d, err := config.UpstreamConfig{IdleTimeout: "90s"}.IdleTimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(90 * time.Second))
	})

	It("falls back to the default when unset", func() {
		d, err := config.UpstreamConfig{}.IdleTimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(60 * time.Second))
	})

	It("accepts zero to disable the timeout", func() {
		d, err := config.UpstreamConfig{IdleTimeout: "0"}.IdleTimeoutDuration()
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeZero())
	})

	It("rejects garbage", func() {
		_, err := config.UpstreamConfig{IdleTimeout: "later"}.IdleTimeoutDuration()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PresetConfig", func() {
	DescribeTable("returns an upstream for each preset",
		func(name, baseURL string) {
			cfg, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Upstream.BaseURL).To(Equal(baseURL))
			Expect(cfg.Upstream.Model).NotTo(BeEmpty())
		},
		Entry("openai", "openai", "https://api.openai.com/v1"),
		Entry("ollama, case-insensitive", "Ollama", "http://localhost:11434/v1"),
		Entry("openrouter", "openrouter", "https://openrouter.ai/api/v1"),
	)

	It("rejects unknown presets", func() {
		_, err := config.PresetConfig("anthropic")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})

	It("has a preset for every valid name", func() {
		for _, name := range config.ValidPresetNames() {
			_, err := config.PresetConfig(name)
			Expect(err).NotTo(HaveOccurred())
		}
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Upstream.Model).To(BeEmpty())
	})

	It("rejects unsupported config version", func() {
		cfg, err := config.ParseConfigTOML([]byte("version = 2\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
		Expect(cfg).To(BeNil())
	})
})
