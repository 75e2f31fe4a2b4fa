package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the persistent koinonia configuration stored as
// config.toml in the .koinonia/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the conversation store shared by chat and the API.
type StorageConfig struct {
	// Driver is one of inmemory, sqlite, postgres or remote. Empty picks
	// sqlite when SQLitePath is set, inmemory otherwise.
	Driver       string `toml:"driver,omitempty"`
	SQLitePath   string `toml:"sqlite_path,omitempty"`
	PostgresDSN  string `toml:"postgres_dsn,omitempty"`
	RemoteTarget string `toml:"remote_target,omitempty"`
}

// UpstreamConfig holds the chat-completion endpoint settings.
type UpstreamConfig struct {
	BaseURL      string `toml:"base_url,omitempty"`
	Model        string `toml:"model,omitempty"`
	IdleTimeout  string `toml:"idle_timeout,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
}

// IdleTimeoutDuration parses IdleTimeout. Empty means the default.
func (u UpstreamConfig) IdleTimeoutDuration() (time.Duration, error) {
	if u.IdleTimeout == "" {
		return time.ParseDuration(defaultIdleTimeout)
	}
	d, err := time.ParseDuration(u.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid upstream.idle_timeout: %w", err)
	}
	return d, nil
}

// APIConfig holds persistence API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands acting on behalf of a user.
type ClientConfig struct {
	UserID    string `toml:"user_id,omitempty"`
	APITarget string `toml:"api_target,omitempty"`
}

// EventStreamConfig selects where completed turns are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case "", "inmemory", "sqlite", "postgres", "remote":
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (available: inmemory, sqlite, postgres, remote)", v)
			}
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"storage.remote_target": {
		get: func(c *Config) string { return c.Storage.RemoteTarget },
		set: func(c *Config, v string) error { c.Storage.RemoteTarget = v; return nil },
	},
	"upstream.base_url": {
		get: func(c *Config) string { return c.Upstream.BaseURL },
		set: func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil },
	},
	"upstream.model": {
		get: func(c *Config) string { return c.Upstream.Model },
		set: func(c *Config, v string) error { c.Upstream.Model = v; return nil },
	},
	"upstream.idle_timeout": {
		get: func(c *Config) string { return c.Upstream.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for upstream.idle_timeout: %w", err)
			}
			c.Upstream.IdleTimeout = v
			return nil
		},
	},
	"upstream.system_prompt": {
		get: func(c *Config) string { return c.Upstream.SystemPrompt },
		set: func(c *Config, v string) error { c.Upstream.SystemPrompt = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.user_id": {
		get: func(c *Config) string { return c.Client.UserID },
		set: func(c *Config, v string) error { c.Client.UserID = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "", "none", "kafka":
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: none, kafka)", v)
			}
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = splitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

// splitList parses a comma separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
