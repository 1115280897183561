// Package runner drives a language model through a tool-calling loop.
package runner

import (
	"context"
	"errors"

	"github.com/kenton-research/kenton/pkg/apitool"
)

// ErrMaxTurns is returned when the model keeps calling tools past the turn limit.
var ErrMaxTurns = errors.New("model did not produce a final answer within the turn limit")

// Runner produces a final answer for one input.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request is one run. Model falls back to the runner's default.
type Request struct {
	Instructions string
	Input        string
	Model        string
}

// Result is the outcome of a run. FinalOutput is always set on success.
type Result struct {
	FinalOutput string
	Model       string
	ToolCalls   []ToolCall
	Turns       int
}

// ToolsUsed lists distinct tool names in call order.
func (r *Result) ToolsUsed() []string {
	seen := make(map[string]bool, len(r.ToolCalls))
	var names []string
	for _, c := range r.ToolCalls {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

// ToolCall records one tool invocation made during a run.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	Envelope  apitool.Envelope
}

// ToolSet is what a runner needs from a tool registry.
type ToolSet interface {
	Definitions() []apitool.Definition
	Call(ctx context.Context, name string, params map[string]any) apitool.Envelope
}
