package runner

import (
	"context"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// MockOpenAIClient replays queued responses and records requests.
type MockOpenAIClient struct {
	mu        sync.Mutex
	responses []openai.ChatCompletionResponse
	errors    []error
	calls     []openai.ChatCompletionRequest
	next      int
}

// NewMockOpenAIClient creates an empty mock.
func NewMockOpenAIClient() *MockOpenAIClient {
	return &MockOpenAIClient{}
}

// CreateChatCompletion implements OpenAIClient.
func (m *MockOpenAIClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.next >= len(m.responses) {
		return openai.ChatCompletionResponse{}, nil
	}
	resp, err := m.responses[m.next], m.errors[m.next]
	m.next++
	return resp, err
}

// AddResponse queues a response.
func (m *MockOpenAIClient) AddResponse(resp openai.ChatCompletionResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errors = append(m.errors, err)
}

// AddText queues a plain assistant answer.
func (m *MockOpenAIClient) AddText(content string) {
	m.AddResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}, nil)
}

// AddToolCall queues an assistant message calling one function.
func (m *MockOpenAIClient) AddToolCall(id, function, arguments string) {
	m.AddResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       id,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: function, Arguments: arguments},
				}},
			},
		}},
	}, nil)
}

// Calls returns the recorded requests.
func (m *MockOpenAIClient) Calls() []openai.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]openai.ChatCompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// StaticRunner returns a fixed answer, or Err when set.
type StaticRunner struct {
	Output string
	Tools  []string
	Err    error

	mu       sync.Mutex
	requests []Request
}

// Run implements Runner.
func (s *StaticRunner) Run(_ context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	res := &Result{FinalOutput: s.Output, Model: req.Model, Turns: 1}
	for _, name := range s.Tools {
		res.ToolCalls = append(res.ToolCalls, ToolCall{Name: name})
	}
	return res, nil
}

// Requests returns the requests seen so far.
func (s *StaticRunner) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
