package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "koinonia chat" and "koinonia serve").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddStringSliceFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagRemoteTarget  = "remote-target"
	FlagBaseURL       = "base-url"
	FlagModel         = "model"
	FlagIdleTimeout   = "idle-timeout"
	FlagSystemPrompt  = "system-prompt"
	FlagAPIListen     = "api-listen"
	FlagUserID        = "user"
	FlagAPITarget     = "api-target"
	FlagEventProvider = "events"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
)

// Flags is the registry shared by every koinonia command.
var Flags = FlagSet{
	FlagStorageDriver: {Name: "storage", ViperKey: "storage.driver", Description: "Conversation store (inmemory, sqlite, postgres, remote)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "Postgres connection string"},
	FlagRemoteTarget:  {Name: "remote-target", ViperKey: "storage.remote_target", Description: "Koinonia API server URL used by the remote store"},
	FlagBaseURL:       {Name: "base-url", Shorthand: "u", ViperKey: "upstream.base_url", Description: "Chat completion API base URL"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Model name"},
	FlagIdleTimeout:   {Name: "idle-timeout", ViperKey: "upstream.idle_timeout", Description: "Maximum silence between two stream chunks (0 disables)"},
	FlagSystemPrompt:  {Name: "system-prompt", ViperKey: "upstream.system_prompt", Description: "System prompt prepended to every request"},
	FlagAPIListen:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUserID:        {Name: "user", ViperKey: "client.user_id", Description: "User owning the conversations"},
	FlagAPITarget:     {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Koinonia API server URL"},
	FlagEventProvider: {Name: "events", ViperKey: "eventstream.provider", Description: "Turn event publisher (none, kafka)"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Kafka broker addresses"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for turn events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStringSliceFlag registers a comma separated list flag on cmd from the given FlagSet.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, key string, target *[]string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultStringSlice(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringSliceVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultStringSlice returns the default list value for a viper key from NewDefaultConfig.
func defaultStringSlice(viperKey string) []string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetStringSlice(viperKey)
}
