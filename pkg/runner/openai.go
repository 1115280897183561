package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/apitool"
	"github.com/kenton-research/kenton/pkg/observability"
	"github.com/kenton-research/kenton/pkg/session"
)

const (
	DefaultModel    = "gpt-4.1"
	DefaultMaxTurns = 8

	// maxToolMessageBytes caps a tool result fed back to the model. Larger
	// envelopes are sent without their raw data.
	maxToolMessageBytes = 16 << 10
)

// OpenAIClient is the part of *openai.Client the runner uses.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a client. An empty baseURL uses the OpenAI API.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIRunner runs chat completions, dispatching tool calls to a ToolSet
// until the model answers without calling tools.
type OpenAIRunner struct {
	client      OpenAIClient
	tools       ToolSet
	model       string
	maxTurns    int
	temperature float32
}

// Option configures an OpenAIRunner.
type Option func(*OpenAIRunner)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(r *OpenAIRunner) {
		if model != "" {
			r.model = model
		}
	}
}

// WithMaxTurns bounds the number of completions per run.
func WithMaxTurns(n int) Option {
	return func(r *OpenAIRunner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(r *OpenAIRunner) { r.temperature = t }
}

// NewOpenAIRunner creates a runner. tools may be nil.
func NewOpenAIRunner(client OpenAIClient, tools ToolSet, opts ...Option) *OpenAIRunner {
	r := &OpenAIRunner{
		client:   client,
		tools:    tools,
		model:    DefaultModel,
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *OpenAIRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if r.client == nil {
		return nil, errors.New("runner: no model client configured")
	}
	model := req.Model
	if model == "" {
		model = r.model
	}

	ctx, span := observability.StartSpan(ctx, "runner.run", attribute.String("model", model))
	defer span.End()

	var messages []openai.ChatCompletionMessage
	if req.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Instructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})

	tools := r.toolDefinitions()
	result := &Result{Model: model}

	for turn := 1; turn <= r.maxTurns; turn++ {
		result.Turns = turn

		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Tools:       tools,
			Temperature: r.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("chat completion: no choices in response")
		}
		if resp.Model != "" {
			result.Model = resp.Model
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result.FinalOutput = msg.Content
			span.SetAttributes(attribute.Int("turns", turn), attribute.Int("tool_calls", len(result.ToolCalls)))
			return result, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			tc := r.dispatch(ctx, call)
			result.ToolCalls = append(result.ToolCalls, tc)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolMessage(tc.Envelope),
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}

	logger.Warn("run stopped at turn limit", zap.Int("max_turns", r.maxTurns), zap.String("model", model))
	return nil, ErrMaxTurns
}

func (r *OpenAIRunner) dispatch(ctx context.Context, call openai.ToolCall) ToolCall {
	name := call.Function.Name
	tc := ToolCall{Name: name}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			tc.Envelope = apitool.Envelope{
				Status: apitool.StatusError,
				Kind:   apitool.KindValidation,
				Code:   apitool.CodeValidation,
				Error:  fmt.Sprintf("invalid arguments for %s: %v", name, err),
				Hint:   "arguments must be a JSON object",
			}
			return tc
		}
	}
	tc.Arguments = args

	if r.tools == nil {
		tc.Envelope = apitool.Envelope{
			Status: apitool.StatusError,
			Kind:   apitool.KindNotFound,
			Code:   apitool.CodeNotFound,
			Error:  "no tools are available",
		}
		return tc
	}

	tc.Envelope = r.tools.Call(ctx, name, args)
	if resolved := r.toolName(name); resolved != "" {
		tc.Name = resolved
	}
	fields := []zap.Field{
		zap.String("tool", tc.Name),
		zap.String("status", string(tc.Envelope.Status)),
		zap.Int("attempts", tc.Envelope.Attempts),
	}
	if id, ok := session.SessionIDFromContext(ctx); ok {
		fields = append(fields, zap.String("session_id", id))
	}
	logger.Debug("tool call", fields...)
	return tc
}

// toolName maps a function name back to the tool's logical name.
func (r *OpenAIRunner) toolName(fn string) string {
	for _, d := range r.tools.Definitions() {
		if d.FunctionName == fn || d.Name == fn {
			return d.Name
		}
	}
	return ""
}

func (r *OpenAIRunner) toolDefinitions() []openai.Tool {
	if r.tools == nil {
		return nil
	}
	defs := r.tools.Definitions()
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		params, err := json.Marshal(d.Parameters)
		if err != nil {
			logger.Warn("skipping tool with unencodable schema", zap.String("tool", d.Name), zap.Error(err))
			continue
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.FunctionName,
				Description: d.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return tools
}

func toolMessage(env apitool.Envelope) string {
	out := env.JSON()
	if len(out) <= maxToolMessageBytes {
		return out
	}
	env.Data = nil
	return env.JSON()
}
