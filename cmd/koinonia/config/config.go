// Package configcmder provides the config command for managing persistent
// koinonia configuration stored in the .koinonia/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent koinonia configuration.

Configuration is stored as config.toml in the .koinonia/ directory and provides
default values for command flags. CLI flags and KOINONIA_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn, storage.remote_target,
  upstream.base_url, upstream.model, upstream.idle_timeout, upstream.system_prompt,
  api.listen,
  client.user_id, client.api_target,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  koinonia config set <key> <value>    Set a configuration value
  koinonia config get <key>            Get a configuration value
  koinonia config list                 List all configuration values

Examples:
  koinonia config set upstream.model llama3.2
  koinonia config set storage.driver sqlite
  koinonia config get upstream.base_url
  koinonia config list`

const configShortDesc string = "Manage persistent koinonia configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
