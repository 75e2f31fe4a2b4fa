package conversationscmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/chat"
	"github.com/papercomputeco/koinonia/pkg/cliui"
)

func newRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			title := strings.Join(args[1:], " ")
			if err := s.svc.Rename(cmd.Context(), id, title); err != nil {
				return notFound(id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Renamed %s to %s\n\n",
				cliui.SuccessMark,
				cliui.IDStyle.Render(id),
				cliui.NameStyle.Render(chat.DeriveTitle(title)),
			)
			return nil
		},
	}

	addFlags(cmd)
	return cmd
}
