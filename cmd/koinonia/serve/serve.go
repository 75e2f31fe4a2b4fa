// Package servecmder provides the serve command running the persistence API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/api"
	"github.com/papercomputeco/koinonia/cmd/koinonia/setup"
	"github.com/papercomputeco/koinonia/pkg/config"
	"github.com/papercomputeco/koinonia/pkg/logger"
)

const serveLongDesc string = `Run the persistence API: conversations and their messages over HTTP.

The API serves the configured store. Point other koinonia clients at it
with --storage remote --remote-target http://<host>:<port>.

Examples:
  koinonia serve --listen :8081 --sqlite ./koinonia.db
  koinonia serve --storage postgres --postgres-dsn postgres://...`

const serveShortDesc string = "Run the persistence API server"

var flagKeys = append([]string{config.FlagAPIListen}, setup.StorageFlags...)

type serveCommander struct {
	debug   bool
	logFile string
	logger  *zap.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, err := setup.Load(cmd, flagKeys...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	setup.AddFlags(cmd, flagKeys...)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	console := logger.NewLoggerWithWriters(c.debug, cmd.ErrOrStderr())
	c.logger = console

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(console, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}
	defer func() { _ = c.logger.Sync() }()

	driver, err := setup.OpenStore(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, driver, c.logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		c.logger.Info("shutting down", zap.Error(context.Cause(ctx)))
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}

		if err := <-errChan; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	}
}
