package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/kenton-research/kenton/pkg/assistant"
	"github.com/kenton-research/kenton/pkg/session"
)

const chatHelp = `Commands:
  /help          Show this help
  /session       Show session info
  /history       Show this session's history
  /model [name]  Show or change the model
  /clear         Clear history and start a new session
  /quit          Exit`

func buildChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive research session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			asst, err := a.assistant()
			if err != nil {
				return err
			}

			c := &chat{
				out:       cmd.OutOrStdout(),
				store:     a.store,
				assistant: asst,
				sessionID: flags.sessionID,
				model:     a.cfg.Model.Name,
			}
			if c.sessionID == "" {
				c.sessionID = session.NewID()
			}
			return c.run(cmd.Context())
		},
	}
}

// chat is one interactive session. handle is separate from the line
// editor so commands can be driven without a terminal.
type chat struct {
	out       io.Writer
	store     *session.Store
	assistant *assistant.Assistant
	sessionID string
	model     string
}

func (c *chat) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		var out []string
		for _, cmd := range []string{"/help", "/session", "/history", "/model", "/clear", "/quit"} {
			if strings.HasPrefix(cmd, s) {
				out = append(out, cmd)
			}
		}
		return out
	})

	histPath := chatHistoryPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if histPath == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(histPath), 0o700); err != nil {
			return
		}
		if f, err := os.OpenFile(histPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Fprintf(c.out, "Kenton research session %s (model %s)\nType /help for commands.\n\n", c.sessionID, c.model)
	for {
		input, err := line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if c.handle(ctx, input) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handle processes one line and reports whether the session should end.
func (c *chat) handle(ctx context.Context, input string) bool {
	if !strings.HasPrefix(input, "/") {
		c.ask(ctx, input)
		return false
	}

	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/session":
		s := c.store.GetSessionSummary(ctx, c.sessionID)
		printSummary(c.out, s)
		entries, _ := c.store.GetHistory(ctx, c.sessionID, 3)
		if len(entries) > 0 {
			fmt.Fprintln(c.out, "Recent:")
			for _, e := range entries {
				fmt.Fprintf(c.out, "  - %s\n", truncateRunes(e.Query, 50))
			}
		}
	case "/history":
		entries, _ := c.store.GetHistory(ctx, c.sessionID, 0)
		printEntries(c.out, entries)
	case "/model":
		if len(fields) > 1 {
			c.model = fields[1]
		}
		fmt.Fprintf(c.out, "Model: %s\n", c.model)
	case "/clear":
		c.store.ClearSession(ctx, c.sessionID)
		c.sessionID = session.NewID()
		fmt.Fprintf(c.out, "Session cleared. New session ID: %s\n", c.sessionID)
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return false
}

func (c *chat) ask(ctx context.Context, query string) {
	ans, err := c.assistant.AskWithModel(ctx, c.sessionID, query, c.model)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n\n", err)
		return
	}
	fmt.Fprintln(c.out, ans.Output)
	if len(ans.ToolsUsed) > 0 {
		fmt.Fprintf(c.out, "[tools: %s]\n", strings.Join(ans.ToolsUsed, ", "))
	}
	if !ans.Memory.OK() {
		fmt.Fprintf(c.out, "[not saved: %s]\n", ans.Memory.Status)
	}
	fmt.Fprintln(c.out)
}

func chatHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kenton", "chat_history")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
