package conversationscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/koinonia/pkg/cliui"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			msgs, err := s.svc.History(cmd.Context(), id)
			if err != nil {
				return notFound(id, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n  %s %s\n", cliui.HeaderStyle.Render(conv.Title), cliui.DimStyle.Render("("+conv.ID+")"))
			fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d messages, updated %s",
				len(msgs), cliui.FormatTime(conv.UpdatedAt))))

			for _, m := range msgs {
				fmt.Fprintf(w, "%s %s\n", cliui.RoleStyle.Render(m.Role), cliui.DimStyle.Render(cliui.FormatTime(m.CreatedAt)))
				fmt.Fprintf(w, "%s\n\n", m.Content)
			}

			return nil
		},
	}

	addFlags(cmd)
	return cmd
}
