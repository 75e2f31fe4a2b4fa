package conversationscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			if err := s.svc.Delete(cmd.Context(), id); err != nil {
				return notFound(id, err)
			}

			ddm := dotdir.NewManager()
			sel, err := ddm.LoadSelection(s.configDir)
			if err != nil {
				return err
			}
			if sel != nil && sel.ConversationID == id {
				if err := ddm.ClearSelection(s.configDir); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
			return nil
		},
	}

	addFlags(cmd)
	return cmd
}
