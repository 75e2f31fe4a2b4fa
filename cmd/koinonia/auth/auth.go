// Package authcmder provides the auth command for storing the upstream API
// token.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/credentials"
)

const authLongDesc string = `Store the API token used for chat completions.

Tokens are stored per profile in credentials.toml in the .koinonia/ directory
(mode 0600). The KOINONIA_API_TOKEN environment variable, when set, takes
precedence over the stored token.

Examples:
  koinonia auth                       Prompt for the default profile's token
  koinonia auth --profile work        Prompt for the "work" profile's token
  koinonia auth --user marie          Also record the user owning conversations
  koinonia auth --list                List stored profiles
  koinonia auth --remove work         Remove a stored profile
  echo $TOKEN | koinonia auth         Pipe the token from stdin`

const authShortDesc string = "Store the chat completion API token"

type authCommander struct {
	profile string
	userID  string
	list    bool
	remove  string

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			mgr, err := credentials.NewManager(configDir)
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}

			switch {
			case cmder.list:
				return cmder.runList(mgr)
			case cmder.remove != "":
				return cmder.runRemove(mgr)
			default:
				return cmder.runAuth(mgr)
			}
		},
	}

	cmd.Flags().StringVarP(&cmder.profile, "profile", "p", credentials.DefaultProfile, "Credentials profile")
	cmd.Flags().StringVar(&cmder.userID, "user", "", "User id stored with the profile")
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored profiles")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove a stored profile")

	return cmd
}

func (c *authCommander) runAuth(mgr *credentials.Manager) error {
	token, err := c.readToken()
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	existing, err := mgr.GetProfile(c.profile)
	if err != nil {
		return err
	}

	profile := credentials.Profile{Token: token, UserID: existing.UserID}
	if c.userID != "" {
		profile.UserID = c.userID
	}

	if err := mgr.SetProfile(c.profile, profile); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored token for profile %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.profile),
		cliui.DimStyle.Render("("+mgr.GetTarget()+")"),
	)
	return nil
}

func (c *authCommander) runList(mgr *credentials.Manager) error {
	names, err := mgr.ListProfiles()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'koinonia auth' to store a token.\n\n")
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored profiles"))
	for _, name := range names {
		p, err := mgr.GetProfile(name)
		if err != nil {
			return err
		}

		user := "<no user>"
		if p.UserID != "" {
			user = p.UserID
		}
		fmt.Fprintf(c.out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render(user),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(mgr *credentials.Manager) error {
	if err := mgr.RemoveProfile(c.remove); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed profile %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(c.remove))
	return nil
}

// readToken reads the first line of piped input, or prompts with hidden
// input when stdin is a terminal.
func (c *authCommander) readToken() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter API token for profile %s: ", c.profile)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
