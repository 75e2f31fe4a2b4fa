package storageutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/storage"
	"github.com/papercomputeco/koinonia/pkg/storage/inmemory"
	"github.com/papercomputeco/koinonia/pkg/storage/postgres"
	"github.com/papercomputeco/koinonia/pkg/storage/remote"
	"github.com/papercomputeco/koinonia/pkg/storage/sqlite"
)

// Supported storage driver names.
const (
	DriverInMemory = "inmemory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
)

type NewDriverOpts struct {
	// DriverType is one of the Driver* names; empty selects sqlite when a
	// path is set, otherwise in-memory.
	DriverType string

	SQLitePath   string
	PostgresDSN  string
	RemoteTarget string

	Logger *zap.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	driverType := o.DriverType
	if driverType == "" {
		driverType = DriverInMemory
		if o.SQLitePath != "" {
			driverType = DriverSQLite
		}
	}

	switch driverType {
	case DriverInMemory:
		logger.Debug("using in-memory storage")
		return inmemory.NewDriver(), nil

	case DriverSQLite:
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite storage requires a database path")
		}
		logger.Debug("using sqlite storage", zap.String("path", o.SQLitePath))
		d, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, err
		}
		return d, nil

	case DriverPostgres:
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires a connection string")
		}
		logger.Debug("using postgres storage")
		d, err := postgres.NewDriver(ctx, o.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return d, nil

	case DriverRemote:
		logger.Debug("using remote storage", zap.String("target", o.RemoteTarget))
		d, err := remote.NewDriver(o.RemoteTarget)
		if err != nil {
			return nil, err
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driverType)
	}
}
