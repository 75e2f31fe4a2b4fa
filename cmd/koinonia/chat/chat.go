// Package chatcmder provides the chat command: an interactive, streaming
// chat whose turns are stored in the configured conversation store.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/cmd/koinonia/setup"
	"github.com/papercomputeco/koinonia/pkg/chat"
	"github.com/papercomputeco/koinonia/pkg/cliui"
	"github.com/papercomputeco/koinonia/pkg/config"
	"github.com/papercomputeco/koinonia/pkg/credentials"
	"github.com/papercomputeco/koinonia/pkg/dotdir"
	"github.com/papercomputeco/koinonia/pkg/logger"
	"github.com/papercomputeco/koinonia/pkg/storage"
	"github.com/papercomputeco/koinonia/pkg/stream"
)

const chatLongDesc string = `Chat with an OpenAI compatible model, streaming the answer as it arrives.

Every turn is stored: the question before the request is sent, the answer
once the stream completes. A canceled (Ctrl+C) or failed answer is not stored.
If the stream breaks after text has arrived, the partial answer is kept.

The chat resumes the selected conversation ("koinonia conversations select").
Use --new to start a fresh one. With arguments, a single turn is sent and the
command exits.

In the interactive prompt:
  /new     start a new conversation
  /exit    quit (Ctrl+D works too)
  Ctrl+C   cancel the answer being streamed, or quit when idle

Examples:
  koinonia chat
  koinonia chat --new --model llama3.2 --base-url http://localhost:11434/v1
  koinonia chat "Que signifie koinonia ?"`

const chatShortDesc string = "Interactive streaming chat"

var flagKeys = append([]string{
	config.FlagBaseURL,
	config.FlagModel,
	config.FlagIdleTimeout,
	config.FlagSystemPrompt,
	config.FlagUserID,
	config.FlagEventProvider,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}, setup.StorageFlags...)

type chatCommander struct {
	newConversation bool
	conversationID  string
	profile         string

	configDir string
	userID    string

	svc    *chat.Service
	logger *zap.Logger

	in  io.Reader
	out io.Writer

	streaming atomic.Bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVarP(&cmder.newConversation, "new", "n", false, "Start a new conversation")
	cmd.Flags().StringVarP(&cmder.conversationID, "conversation", "c", "", "Continue this conversation")
	cmd.Flags().StringVarP(&cmder.profile, "profile", "p", credentials.DefaultProfile, "Credentials profile")
	setup.AddFlags(cmd, flagKeys...)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, oneShot string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	c.configDir, _ = cmd.Flags().GetString("config-dir")

	c.logger = logger.NewLoggerWithWriters(debug, cmd.ErrOrStderr())
	defer func() { _ = c.logger.Sync() }()

	cfg, err := setup.Load(cmd, flagKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	idle, err := cfg.Upstream.IdleTimeoutDuration()
	if err != nil {
		return err
	}

	c.userID, err = setup.UserID(cmd, cfg, c.configDir, c.profile)
	if err != nil {
		return err
	}

	tokens, err := setup.Tokens(c.configDir, c.profile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	driver, err := setup.OpenStore(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	events, err := setup.NewEvents(cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			c.logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	c.svc = chat.New(driver, setup.NewTransport(cfg, tokens, c.logger),
		chat.WithModel(cfg.Upstream.Model),
		chat.WithSystemPrompt(cfg.Upstream.SystemPrompt),
		chat.WithIdleTimeout(idle),
		chat.WithEvents(events.Pool),
		chat.WithLogger(c.logger),
	)

	convID, err := c.startingConversation()
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if c.streaming.Load() {
					c.svc.Cancel()
				} else {
					cancel()
				}
			}
		}
	}()

	if oneShot != "" {
		res, err := c.turn(ctx, convID, oneShot)
		if err != nil {
			return err
		}
		if res.State == stream.StateFailed {
			return errors.New(res.Reason)
		}
		return nil
	}

	return c.loop(ctx, convID, cfg.Upstream.Model)
}

// startingConversation resolves which conversation the first turn continues.
func (c *chatCommander) startingConversation() (string, error) {
	ddm := dotdir.NewManager()

	if c.newConversation {
		return "", ddm.ClearSelection(c.configDir)
	}
	if c.conversationID != "" {
		return c.conversationID, nil
	}

	sel, err := ddm.LoadSelection(c.configDir)
	if err != nil {
		return "", err
	}
	if sel == nil || (sel.UserID != "" && sel.UserID != c.userID) {
		return "", nil
	}
	return sel.ConversationID, nil
}

func (c *chatCommander) loop(ctx context.Context, convID, model string) error {
	fmt.Fprintln(c.out)
	if convID != "" {
		fmt.Fprintf(c.out, "  %s Resuming %s\n", cliui.SuccessMark, cliui.IDStyle.Render(convID))
	} else {
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(model))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a new conversation, /exit or Ctrl+D to quit."))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			input = strings.TrimSpace(line)
		}

		switch input {
		case "":
			continue
		case "/exit":
			return nil
		case "/new":
			convID = ""
			if err := dotdir.NewManager().ClearSelection(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		res, err := c.turn(ctx, convID, input)
		if err != nil {
			if errors.Is(err, chat.ErrPersistence) {
				continue
			}
			return err
		}
		convID = res.ConversationID
	}
}

// turn submits one message, streams the answer to the terminal and records
// the conversation as selected. A conversation missing from the store is
// replaced by a new one. Other persistence errors are printed and returned.
func (c *chatCommander) turn(ctx context.Context, convID, text string) (*chat.TurnResult, error) {
	fmt.Fprint(c.out, cliui.AssistantPrompt)

	printer := &deltaPrinter{w: c.out}

	c.streaming.Store(true)
	res, err := c.svc.Submit(ctx, chat.TurnRequest{
		UserID:         c.userID,
		ConversationID: convID,
		Text:           text,
		OnDelta:        printer.print,
	})
	c.streaming.Store(false)
	fmt.Fprintln(c.out)

	if err != nil && convID != "" && storage.IsNotFound(err) {
		return c.startOver(ctx, convID, text)
	}

	if res != nil {
		c.report(res)
		c.remember(res)
	}

	if err != nil {
		fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		return res, err
	}
	fmt.Fprintln(c.out)

	return res, nil
}

// startOver drops a selection whose conversation is gone from the store and
// sends the message as the first turn of a new conversation.
func (c *chatCommander) startOver(ctx context.Context, staleID, text string) (*chat.TurnResult, error) {
	c.logger.Warn("selected conversation not found, starting a new one", zap.String("conversation_id", staleID))
	if err := dotdir.NewManager().ClearSelection(c.configDir); err != nil {
		return nil, err
	}
	fmt.Fprintf(c.out, "  %s %s no longer exists, starting a new conversation\n\n",
		cliui.DimStyle.Render("●"), cliui.IDStyle.Render(staleID))

	return c.turn(ctx, "", text)
}

func (c *chatCommander) report(res *chat.TurnResult) {
	switch res.State {
	case stream.StateCompleted:
		if res.Partial {
			fmt.Fprintf(c.out, "  %s %s\n",
				cliui.WarnStyle.Render("!"),
				cliui.DimStyle.Render("stream interrupted, partial answer kept: "+res.Reason))
		}

	case stream.StateAborted:
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("(canceled, answer not saved)"))

	case stream.StateFailed:
		fmt.Fprintf(c.out, "  %s %s\n", cliui.FailMark, res.Reason)
		if errors.Is(res.Err, stream.ErrUnauthenticated) {
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Run 'koinonia auth' or set "+credentials.TokenEnvVar+"."))
		}
	}
}

// remember selects the conversation so the next chat resumes it.
func (c *chatCommander) remember(res *chat.TurnResult) {
	if res.ConversationID == "" {
		return
	}

	ddm := dotdir.NewManager()

	sel := &dotdir.Selection{
		ConversationID: res.ConversationID,
		UserID:         c.userID,
		Title:          res.Title,
	}
	if sel.Title == "" {
		if prev, err := ddm.LoadSelection(c.configDir); err == nil && prev != nil && prev.ConversationID == sel.ConversationID {
			sel.Title = prev.Title
		}
	}
	if err := ddm.SaveSelection(sel, c.configDir); err != nil {
		c.logger.Warn("failed to save selection", zap.Error(err))
	}
}

// deltaPrinter writes the part of each snapshot not yet printed.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (p *deltaPrinter) print(snapshot string, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(snapshot) <= p.printed {
		return
	}
	fmt.Fprint(p.w, snapshot[p.printed:])
	p.printed = len(snapshot)
}
