package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kenton-research/kenton/internal/logger"
	"github.com/kenton-research/kenton/pkg/apitool"
	"github.com/kenton-research/kenton/pkg/session"
)

func weatherRegistry(t *testing.T) *apitool.Registry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location":{"name":"` + r.URL.Query().Get("q") + `"},"current":{"temp_c":9,"condition":{"text":"Cloudy"}}}`))
	}))
	t.Cleanup(srv.Close)

	desc := apitool.DefaultCatalog()[0]
	desc.Endpoint = srv.URL
	reg, err := apitool.BuildRegistry([]apitool.Descriptor{desc}, apitool.WithCredential("testkey"))
	require.NoError(t, err)
	return reg
}

func TestOpenAIRunner_ToolLoop(t *testing.T) {
	client := NewMockOpenAIClient()
	client.AddToolCall("call_1", "weatherapi", `{"q":"London"}`)
	client.AddText("It is 9°C and cloudy in London.")

	r := NewOpenAIRunner(client, weatherRegistry(t), WithModel("gpt-test"))
	res, err := r.Run(context.Background(), Request{Instructions: "Be brief.", Input: "Weather in London?"})
	require.NoError(t, err)

	assert.Equal(t, "It is 9°C and cloudy in London.", res.FinalOutput)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, 2, res.Turns)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "WeatherAPI", res.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"q": "London"}, res.ToolCalls[0].Arguments)
	assert.True(t, res.ToolCalls[0].Envelope.OK())
	assert.Equal(t, []string{"WeatherAPI"}, res.ToolsUsed())

	calls := client.Calls()
	require.Len(t, calls, 2)
	first := calls[0]
	assert.Equal(t, "gpt-test", first.Model)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, "weatherapi", first.Tools[0].Function.Name)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, first.Messages[0].Role)
	assert.Equal(t, "Weather in London?", first.Messages[1].Content)

	second := calls[1]
	require.Len(t, second.Messages, 4)
	toolMsg := second.Messages[3]
	assert.Equal(t, openai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `"status":"success"`)
	assert.Contains(t, toolMsg.Content, "Cloudy")
}

func TestOpenAIRunner_ToolCallLogCarriesSessionID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })

	client := NewMockOpenAIClient()
	client.AddToolCall("call_1", "weatherapi", `{"q":"Paris"}`)
	client.AddText("Cloudy in Paris.")

	ctx := session.ContextWithSessionID(context.Background(), "sess-42")
	_, err := NewOpenAIRunner(client, weatherRegistry(t)).Run(ctx, Request{Input: "Weather in Paris?"})
	require.NoError(t, err)

	calls := logs.FilterMessage("tool call").All()
	require.Len(t, calls, 1)
	fields := calls[0].ContextMap()
	assert.Equal(t, "sess-42", fields["session_id"])
	assert.Equal(t, "WeatherAPI", fields["tool"])
}

func TestOpenAIRunner_UnknownToolAndBadArguments(t *testing.T) {
	client := NewMockOpenAIClient()
	client.AddToolCall("c1", "stockapi", `{}`)
	client.AddToolCall("c2", "weatherapi", `{not json`)
	client.AddText("Sorry, I could not look that up.")

	r := NewOpenAIRunner(client, weatherRegistry(t))
	res, err := r.Run(context.Background(), Request{Input: "AAPL price?"})
	require.NoError(t, err)
	require.Len(t, res.ToolCalls, 2)

	assert.Equal(t, apitool.KindNotFound, res.ToolCalls[0].Envelope.Kind)
	assert.Equal(t, apitool.KindValidation, res.ToolCalls[1].Envelope.Kind)
	assert.Equal(t, DefaultModel, res.Model)

	last := client.Calls()[2].Messages
	assert.Contains(t, last[len(last)-1].Content, "invalid arguments")
}

func TestOpenAIRunner_MaxTurns(t *testing.T) {
	client := NewMockOpenAIClient()
	for i := 0; i < 3; i++ {
		client.AddToolCall("c", "weatherapi", `{"q":"Oslo"}`)
	}
	r := NewOpenAIRunner(client, weatherRegistry(t), WithMaxTurns(2))
	_, err := r.Run(context.Background(), Request{Input: "loop"})
	assert.ErrorIs(t, err, ErrMaxTurns)
	assert.Len(t, client.Calls(), 2)
}

func TestOpenAIRunner_Errors(t *testing.T) {
	client := NewMockOpenAIClient()
	client.AddResponse(openai.ChatCompletionResponse{}, errors.New("401 unauthorized"))
	r := NewOpenAIRunner(client, nil)
	_, err := r.Run(context.Background(), Request{Input: "hi"})
	assert.ErrorContains(t, err, "chat completion: 401 unauthorized")

	empty := NewMockOpenAIClient()
	empty.AddResponse(openai.ChatCompletionResponse{}, nil)
	_, err = NewOpenAIRunner(empty, nil).Run(context.Background(), Request{Input: "hi"})
	assert.ErrorContains(t, err, "no choices")

	_, err = NewOpenAIRunner(nil, nil).Run(context.Background(), Request{Input: "hi"})
	assert.Error(t, err)
}

func TestOpenAIRunner_NoToolsOmitsDefinitions(t *testing.T) {
	client := NewMockOpenAIClient()
	client.AddText("hello")
	res, err := NewOpenAIRunner(client, nil).Run(context.Background(), Request{Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalOutput)
	assert.Empty(t, client.Calls()[0].Tools)
	assert.Len(t, client.Calls()[0].Messages, 1)
}

func TestToolMessage_DropsOversizedData(t *testing.T) {
	env := apitool.Envelope{
		Status:  apitool.StatusSuccess,
		Data:    map[string]any{"blob": strings.Repeat("x", maxToolMessageBytes)},
		Display: "summary",
	}
	out := toolMessage(env)
	assert.Less(t, len(out), maxToolMessageBytes)
	assert.Contains(t, out, "summary")
	assert.NotContains(t, out, "blob")
}

func TestStaticRunner(t *testing.T) {
	s := &StaticRunner{Output: "ok", Tools: []string{"A", "B", "A"}}
	res, err := s.Run(context.Background(), Request{Input: "q", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.FinalOutput)
	assert.Equal(t, []string{"A", "B"}, res.ToolsUsed())
	assert.Len(t, s.Requests(), 1)
}
