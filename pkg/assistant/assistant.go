// Package assistant answers research questions with conversation memory:
// prior exchanges are rendered into the prompt, the runner produces an
// answer, and the new exchange is recorded.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/observability"
	"github.com/kenton-research/kenton/pkg/runner"
	"github.com/kenton-research/kenton/pkg/session"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("query is empty")

// DefaultInstructions frame the model as a research advisor.
const DefaultInstructions = "You are Kenton, a research advisor for business leaders. " +
	"Explain how technology and market trends affect the user's organization. " +
	"Use the available tools for live data such as weather, markets, news and economic series, " +
	"and say so when a tool fails instead of guessing."

// Memory is the conversation store as seen by the assistant.
type Memory interface {
	GetFormattedHistory(ctx context.Context, sessionID string, limit int) string
	AddEntry(ctx context.Context, sessionID, query, response, model string, metadata map[string]any) session.Outcome
}

// Answer is the result of one Ask.
type Answer struct {
	SessionID string
	Output    string
	Model     string
	ToolsUsed []string
	// Memory reports whether the exchange was recorded.
	Memory session.Outcome
}

// Assistant is safe for concurrent use.
type Assistant struct {
	runner       runner.Runner
	memory       Memory
	instructions string
	model        string
	historyLimit int
	now          func() time.Time
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithInstructions replaces DefaultInstructions.
func WithInstructions(s string) Option {
	return func(a *Assistant) { a.instructions = s }
}

// WithModel sets the model requested from the runner.
func WithModel(model string) Option {
	return func(a *Assistant) { a.model = model }
}

// WithHistoryLimit caps how many prior exchanges go into the prompt.
// Zero uses everything the store keeps.
func WithHistoryLimit(n int) Option {
	return func(a *Assistant) { a.historyLimit = n }
}

// WithClock sets the time source for the date line in the instructions.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// New creates an Assistant.
func New(r runner.Runner, mem Memory, opts ...Option) (*Assistant, error) {
	if r == nil {
		return nil, errors.New("assistant: runner is required")
	}
	if mem == nil {
		return nil, errors.New("assistant: memory is required")
	}
	a := &Assistant{
		runner:       r,
		memory:       mem,
		instructions: DefaultInstructions,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Model returns the configured model, which may be empty.
func (a *Assistant) Model() string { return a.model }

// Ask answers query within a session. An empty sessionID starts a new one.
// Runner failures are returned and nothing is recorded; memory failures
// only show up in Answer.Memory.
func (a *Assistant) Ask(ctx context.Context, sessionID, query string) (*Answer, error) {
	return a.AskWithModel(ctx, sessionID, query, a.model)
}

// AskWithModel is Ask with a per-call model override.
func (a *Assistant) AskWithModel(ctx context.Context, sessionID, query, model string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = session.NewID()
	}

	start := time.Now()
	ctx = session.ContextWithSessionID(ctx, sessionID)
	ctx, span := observability.StartSpan(ctx, "assistant.ask", attribute.String("session.id", sessionID))
	defer span.End()

	history := a.memory.GetFormattedHistory(ctx, sessionID, a.historyLimit)
	res, err := a.runner.Run(ctx, runner.Request{
		Instructions: a.composeInstructions(),
		Input:        ComposeInput(history, query),
		Model:        model,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.RecordAssistantTurn("error", time.Since(start))
		logger.Error("assistant run failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("run: %w", err)
	}

	answer := &Answer{
		SessionID: sessionID,
		Output:    res.FinalOutput,
		Model:     res.Model,
		ToolsUsed: res.ToolsUsed(),
	}
	if answer.Model == "" {
		answer.Model = model
	}

	meta := map[string]any{"turns": res.Turns}
	if len(answer.ToolsUsed) > 0 {
		meta["tools_used"] = answer.ToolsUsed
	}
	answer.Memory = a.memory.AddEntry(ctx, sessionID, query, answer.Output, answer.Model, meta)

	span.SetAttributes(
		attribute.Int("tool_calls", len(res.ToolCalls)),
		attribute.String("memory", string(answer.Memory.Status)),
	)
	observability.RecordAssistantTurn("ok", time.Since(start))
	logger.Info("assistant answered",
		zap.String("session_id", sessionID),
		zap.String("model", answer.Model),
		zap.Strings("tools", answer.ToolsUsed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return answer, nil
}

func (a *Assistant) composeInstructions() string {
	return a.instructions + "\n\n" + DateContext(a.now())
}

// ComposeInput prefixes the query with prior conversation, if any.
func ComposeInput(history, query string) string {
	if history == "" {
		return query
	}
	return "Previous conversation:\n" + history + "\n\nCurrent question: " + query
}

// DateContext renders the current date, quarter and fiscal year. The
// fiscal year is assumed to follow the calendar year.
func DateContext(now time.Time) string {
	quarter := (int(now.Month())-1)/3 + 1
	return fmt.Sprintf("Current date: %s (Q%d %d, FY%d).",
		now.Format("January 2, 2006"), quarter, now.Year(), now.Year())
}
