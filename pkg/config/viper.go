package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "KOINONIA"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the KOINONIA_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (KOINONIA_UPSTREAM_MODEL, KOINONIA_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.remote_target", d.Storage.RemoteTarget)

	// Upstream
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.idle_timeout", d.Upstream.IdleTimeout)
	v.SetDefault("upstream.system_prompt", d.Upstream.SystemPrompt)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.user_id", d.Client.UserID)
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}

// Resolve reads the effective configuration out of v, after flags, env and
// file have been layered.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:       v.GetString("storage.driver"),
			SQLitePath:   v.GetString("storage.sqlite_path"),
			PostgresDSN:  v.GetString("storage.postgres_dsn"),
			RemoteTarget: v.GetString("storage.remote_target"),
		},
		Upstream: UpstreamConfig{
			BaseURL:      v.GetString("upstream.base_url"),
			Model:        v.GetString("upstream.model"),
			IdleTimeout:  v.GetString("upstream.idle_timeout"),
			SystemPrompt: v.GetString("upstream.system_prompt"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			UserID:    v.GetString("client.user_id"),
			APITarget: v.GetString("client.api_target"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetStringSlice("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}

	if _, err := cfg.Upstream.IdleTimeoutDuration(); err != nil {
		return nil, err
	}

	return cfg, nil
}
