// Package koinoniacmder wires the koinonia command tree.
package koinoniacmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/koinonia/cmd/koinonia/auth"
	chatcmder "github.com/papercomputeco/koinonia/cmd/koinonia/chat"
	configcmder "github.com/papercomputeco/koinonia/cmd/koinonia/config"
	conversationscmder "github.com/papercomputeco/koinonia/cmd/koinonia/conversations"
	servecmder "github.com/papercomputeco/koinonia/cmd/koinonia/serve"
	versioncmder "github.com/papercomputeco/koinonia/cmd/version"
)

const koinoniaLongDesc string = `Koinonia is a streaming chat client that keeps every conversation.

Answers from any OpenAI compatible endpoint are streamed to the terminal and
stored, together with the question, in SQLite, Postgres, memory or a remote
koinonia API.

Get started:
  koinonia auth              Store an API token
  koinonia chat              Chat interactively
  koinonia conversations     List, show, rename and delete conversations
  koinonia serve             Run the persistence API`

const koinoniaShortDesc string = "Koinonia - streaming chat with persistent conversations"

func NewKoinoniaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "koinonia",
		Short:        koinoniaShortDesc,
		Long:         koinoniaLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .koinonia/ config directory")

	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(conversationscmder.NewConversationsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
