package conversationscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

func newSelectCmd() *cobra.Command {
	var clearSel bool

	cmd := &cobra.Command{
		Use:   "select [id]",
		Short: "Choose the conversation koinonia chat resumes",
		Args: func(cmd *cobra.Command, args []string) error {
			if clearSel {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			ddm := dotdir.NewManager()

			if clearSel {
				configDir, _ := cmd.Flags().GetString("config-dir")
				if err := ddm.ClearSelection(configDir); err != nil {
					return err
				}
				fmt.Fprintf(w, "\n  %s Cleared selection. The next chat starts a new conversation.\n\n", cliui.SuccessMark)
				return nil
			}

			s, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			conv, err := s.svc.Conversation(cmd.Context(), id)
			if err != nil {
				return notFound(id, err)
			}

			sel := &dotdir.Selection{
				ConversationID: conv.ID,
				UserID:         conv.UserID,
				Title:          conv.Title,
			}
			if err := ddm.SaveSelection(sel, s.configDir); err != nil {
				return err
			}

			fmt.Fprintf(w, "\n  %s Selected %s %s\n\n",
				cliui.SuccessMark,
				cliui.IDStyle.Render(conv.ID),
				cliui.NameStyle.Render(conv.Title),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearSel, "clear", false, "Clear the selection")
	addFlags(cmd)
	return cmd
}
