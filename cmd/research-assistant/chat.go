// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/session"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const chatHelp = `Commands:
  /search <query>  plan search steps and run them
  /context         show the research context
  /save            save the session now
  /quit            save and exit
Anything else is sent to the assistant.`

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the assistant in a saved session",
	Long: `Chat continues the session saved at session_path (or starts a new one
with --new). With a message argument it sends one message and exits;
otherwise it reads lines from stdin until /quit or end of input.

/search breaks a query into up to four search steps and runs each one, so
later replies know what has been looked for.

` + chatHelp,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Bool("new", false, "start a new session instead of continuing the saved one")
	chatCmd.Flags().Bool("no-save", false, "do not save the session on exit")
	chatCmd.Flags().Int("max-results", 5, "results per source for /search steps")

	rootCmd.AddCommand(chatCmd)
}

// chatter holds what a chat loop needs, so it can run against any reader
// and writer.
type chatter struct {
	sess       *session.Session
	tools      *tools.Registry
	path       string
	maxResults int
	save       bool
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	fresh, _ := cmd.Flags().GetBool("new")
	noSave, _ := cmd.Flags().GetBool("no-save")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	sess := session.New(a.model, logger)
	if !fresh {
		if err := sess.Load(cfg.SessionPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	c := &chatter{sess: sess, tools: a.tools, path: cfg.SessionPath, maxResults: maxResults, save: !noSave}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		c.handle(ctx, strings.Join(args, " "), out)
		return c.persist()
	}
	return c.loop(ctx, cmd.InOrStdin(), out)
}

func (c *chatter) loop(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Session %s. %s\n\n", c.sess.ID(), c.sess.ContextSummary())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		c.handle(ctx, line, out)
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return c.persist()
}

func (c *chatter) handle(ctx context.Context, line string, out io.Writer) {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/context":
		fmt.Fprintln(out, c.sess.ContextSummary())
	case "/save":
		if err := c.persist(); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	case "/search":
		c.research(ctx, strings.TrimSpace(rest), out)
	default:
		fmt.Fprintln(out, c.sess.Chat(ctx, line))
	}
}

// research runs each planned step through the search tool and records it
// in the session.
func (c *chatter) research(ctx context.Context, query string, out io.Writer) {
	if query == "" {
		fmt.Fprintln(out, "usage: /search <query>")
		return
	}
	c.sess.AddMessage(types.RoleUser, "/search "+query)

	steps := c.sess.PlanSteps(ctx, query)
	total := 0
	for i, step := range steps {
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(steps), step)
		res := c.tools.Execute(ctx, tools.Search, map[string]any{"query": step, "max_results": c.maxResults})
		if !res.Success {
			fmt.Fprintf(out, "search failed: %s\n", res.Error)
			continue
		}
		o, _ := res.Data.(search.Outcome)
		search.FormatTable(o, out)
		c.sess.RecordSearch(step, o.TotalFound)
		total += o.TotalFound
	}
	c.sess.AddMessage(types.RoleAssistant, fmt.Sprintf("Ran %d searches for %q and found %d papers.", len(steps), query, total))
}

func (c *chatter) persist() error {
	if !c.save || c.path == "" {
		return nil
	}
	if err := c.sess.Save(c.path); err != nil {
		return err
	}
	logger.Debug("session saved", zap.String("path", c.path), zap.String("id", c.sess.ID()))
	return nil
}
