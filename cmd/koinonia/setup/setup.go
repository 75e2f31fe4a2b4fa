// Package setup builds the runtime collaborators shared by koinonia commands
// from the layered configuration.
package setup

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/config"
	"github.com/papercomputeco/koinonia/pkg/credentials"
	"github.com/papercomputeco/koinonia/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/koinonia/pkg/eventstream/utils"
	"github.com/papercomputeco/koinonia/pkg/storage"
	storageutils "github.com/papercomputeco/koinonia/pkg/storage/utils"
	"github.com/papercomputeco/koinonia/pkg/stream"
	"github.com/papercomputeco/koinonia/pkg/worker"
)

// StorageFlags are the registry keys selecting the conversation store.
var StorageFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagRemoteTarget,
}

// AddFlags registers the given registry flags on cmd. Values are read back
// through viper in Load, so the flag targets are throwaway.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if key == config.FlagKafkaBrokers {
			var sink []string
			config.AddStringSliceFlag(cmd, config.Flags, key, &sink)
			continue
		}
		var sink string
		config.AddStringFlag(cmd, config.Flags, key, &sink)
	}
}

// Load layers flags over env, config file and defaults, and returns the
// effective configuration.
func Load(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return config.Resolve(v)
}

// OpenStore opens the configured storage driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Driver, error) {
	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		DriverType:   cfg.Storage.Driver,
		SQLitePath:   cfg.Storage.SQLitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		RemoteTarget: cfg.Storage.RemoteTarget,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return driver, nil
}

// Tokens resolves the bearer token from KOINONIA_API_TOKEN first, then from
// the named profile in credentials.toml.
func Tokens(configDir, profile string) (credentials.TokenSource, error) {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	return credentials.Chain{
		credentials.EnvSource{},
		credentials.FileSource{Manager: mgr, Profile: profile},
	}, nil
}

// NewTransport builds the streaming transport for the configured upstream.
func NewTransport(cfg *config.Config, tokens credentials.TokenSource, logger *zap.Logger) *stream.HTTPTransport {
	return stream.NewHTTPTransport(&stream.HTTPTransportConfig{
		BaseURL: cfg.Upstream.BaseURL,
		Tokens:  tokens,
		Logger:  logger,
	})
}

// Events bundles the turn event publisher with the pool feeding it.
type Events struct {
	Pool      *worker.Pool
	Publisher eventstream.Publisher
}

// NewEvents starts the publisher and worker pool for completed turns.
func NewEvents(cfg *config.Config, logger *zap.Logger) (*Events, error) {
	pub, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher: pub,
		Logger:    logger,
	})
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return &Events{Pool: pool, Publisher: pub}, nil
}

// Close drains the pool then closes the publisher.
func (e *Events) Close() error {
	e.Pool.Close()
	return e.Publisher.Close()
}

// UserID picks the acting user: an explicit --user flag, then the user stored
// with the credentials profile, then client.user_id.
func UserID(cmd *cobra.Command, cfg *config.Config, configDir, profile string) (string, error) {
	if f := cmd.Flags().Lookup(config.Flags[config.FlagUserID].Name); f != nil && f.Changed {
		return cfg.Client.UserID, nil
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	p, err := mgr.GetProfile(profile)
	if err != nil {
		return "", err
	}
	if p.UserID != "" {
		return p.UserID, nil
	}

	return cfg.Client.UserID, nil
}
