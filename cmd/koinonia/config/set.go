package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .koinonia/ directory. List values such as
eventstream.brokers are comma separated.

Examples:
  koinonia config set upstream.base_url http://localhost:11434/v1
  koinonia config set upstream.idle_timeout 90s
  koinonia config set eventstream.brokers kafka-1:9092,kafka-2:9092`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if preset != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			if preset != "" {
				return runPreset(cmd.OutOrStdout(), preset, configDir)
			}
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		"Write an upstream preset ("+strings.Join(config.ValidPresetNames(), ", ")+") instead of a single key")

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger)

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}

func runPreset(w io.Writer, name, configDir string) error {
	preset, err := config.PresetConfig(name)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Upstream.BaseURL = preset.Upstream.BaseURL
	cfg.Upstream.Model = preset.Upstream.Model

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Applied preset %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.DimStyle.Render("("+cfg.Upstream.BaseURL+", "+cfg.Upstream.Model+")"),
	)
	return nil
}
