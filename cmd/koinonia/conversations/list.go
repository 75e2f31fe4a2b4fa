package conversationscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/dotdir"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			convs, err := s.svc.Conversations(cmd.Context(), s.userID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintf(w, "\n  %s No conversations for %s.\n\n",
					cliui.DimStyle.Render("●"), cliui.NameStyle.Render(s.userID))
				return nil
			}

			sel, err := dotdir.NewManager().LoadSelection(s.configDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Conversations"))
			for _, c := range convs {
				marker := " "
				if sel != nil && sel.ConversationID == c.ID {
					marker = cliui.SuccessMark
				}

				title := c.Title
				if title == "" {
					title = "(untitled)"
				}

				fmt.Fprintf(w, "  %s %s  %s  %s\n",
					marker,
					cliui.IDStyle.Render(c.ID),
					cliui.DimStyle.Render(cliui.FormatTime(c.UpdatedAt)),
					cliui.NameStyle.Render(title),
				)
			}
			fmt.Fprintln(w)

			return nil
		},
	}

	addFlags(cmd)
	return cmd
}
