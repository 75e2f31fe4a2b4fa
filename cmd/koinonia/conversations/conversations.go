// Package conversationscmder provides the conversations command for browsing
// and managing stored conversations.
package conversationscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/cmd/koinonia/setup"
	"github.com/papercomputeco/koinonia/pkg/chat"
	"github.com/papercomputeco/koinonia/pkg/config"
	"github.com/papercomputeco/koinonia/pkg/credentials"
	"github.com/papercomputeco/koinonia/pkg/logger"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

const conversationsLongDesc string = `Browse and manage stored conversations.

Conversations are read from the configured store (storage.driver). The
selected conversation is the one "koinonia chat" resumes.

Examples:
  koinonia conversations list
  koinonia conversations show <id>
  koinonia conversations rename <id> "Lecture du matin"
  koinonia conversations delete <id>
  koinonia conversations select <id>
  koinonia conversations select --clear`

const conversationsShortDesc string = "Browse and manage stored conversations"

// flagKeys are the registry flags every subcommand accepts.
var flagKeys = append([]string{config.FlagUserID}, setup.StorageFlags...)

func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   conversationsShortDesc,
		Long:    conversationsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newSelectCmd())

	return cmd
}

// addFlags registers the store and user flags on a subcommand.
func addFlags(cmd *cobra.Command) {
	setup.AddFlags(cmd, flagKeys...)
	cmd.Flags().StringP("profile", "p", credentials.DefaultProfile, "Credentials profile")
}

// session is what every subcommand works with.
type session struct {
	svc       *chat.Service
	driver    storage.Driver
	userID    string
	configDir string
	logger    *zap.Logger
}

func (s *session) Close() {
	if err := s.driver.Close(); err != nil {
		s.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")
	profile, _ := cmd.Flags().GetString("profile")

	log := logger.NewLoggerWithWriters(debug, cmd.ErrOrStderr())

	cfg, err := setup.Load(cmd, flagKeys...)
	if err != nil {
		return nil, err
	}

	userID, err := setup.UserID(cmd, cfg, configDir, profile)
	if err != nil {
		return nil, err
	}

	driver, err := setup.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &session{
		svc:       chat.New(driver, nil, chat.WithLogger(log)),
		driver:    driver,
		userID:    userID,
		configDir: configDir,
		logger:    log,
	}, nil
}

func notFound(id string, err error) error {
	if storage.IsNotFound(err) {
		return fmt.Errorf("no conversation %q", id)
	}
	return err
}
