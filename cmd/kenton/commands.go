package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kenton-research/kenton/pkg/session"
)

func buildAskCmd(flags *rootFlags) *cobra.Command {
	var (
		model  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long: `Ask a single question. With --session, earlier exchanges in that session are
included as context and the new exchange is remembered.`,
		Args: cobra.MinimumNArgs(1),
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

			if model == "" {
				model = a.cfg.Model.Name
			}
			ans, err := asst.AskWithModel(cmd.Context(), flags.sessionID, strings.Join(args, " "), model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{
					"session_id": ans.SessionID,
					"output":     ans.Output,
					"model":      ans.Model,
					"tools_used": ans.ToolsUsed,
					"memory":     string(ans.Memory.Status),
				})
			}

			fmt.Fprintln(out, ans.Output)
			errOut := cmd.ErrOrStderr()
			if len(ans.ToolsUsed) > 0 {
				fmt.Fprintf(errOut, "\ntools: %s\n", strings.Join(ans.ToolsUsed, ", "))
			}
			if flags.sessionID == "" {
				fmt.Fprintf(errOut, "session: %s\n", ans.SessionID)
			}
			if !ans.Memory.OK() {
				fmt.Fprintf(errOut, "warning: exchange not saved: %s\n", ans.Memory)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	return cmd
}

func buildHistoryCmd(flags *rootFlags) *cobra.Command {
	var (
		limit  int
		asJSON bool
		prompt bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a session's conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireSession(flags)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if prompt {
				fmt.Fprintln(out, a.store.GetFormattedHistory(cmd.Context(), id, limit))
				return nil
			}

			entries, outcome := a.store.GetHistory(cmd.Context(), id, limit)
			if !outcome.OK() {
				return fmt.Errorf("read history: %s", outcome)
			}
			if asJSON {
				return writeJSON(out, entries)
			}
			printEntries(out, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N exchanges")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Print the history as it is given to the model")
	return cmd
}

func printEntries(w io.Writer, entries []session.ConversationEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history for this session.")
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Model)
		fmt.Fprintf(w, "User: %s\n", e.Query)
		fmt.Fprintf(w, "Assistant: %s\n", e.Response)
	}
}

func buildSummaryCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireSession(flags)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.store.GetSessionSummary(cmd.Context(), id)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, s)
			}
			printSummary(out, s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s session.Summary) {
	fmt.Fprintf(w, "Session:   %s\n", s.SessionID)
	fmt.Fprintf(w, "Exchanges: %d\n", s.TotalExchanges)
	if s.StartTime == nil {
		return
	}
	fmt.Fprintf(w, "Started:   %s\n", s.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Last:      %s\n", s.LastActivity.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration:  %.1f min\n", s.DurationMinutes)
	fmt.Fprintf(w, "Models:    %s\n", strings.Join(s.ModelsUsed, ", "))
	if len(s.Topics) > 0 {
		fmt.Fprintf(w, "Topics:    %s\n", strings.Join(s.Topics, ", "))
	}
}

func buildClearCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete a session's history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireSession(flags)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if o := a.store.ClearSession(cmd.Context(), id); !o.OK() {
				return fmt.Errorf("clear session: %s", o)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", id)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
