package apitool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrToolNotFound is returned when no tool matches a name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolConflict is returned when a name or function name is taken.
	ErrToolConflict = errors.New("tool name conflict")
)

// Registry holds tools by logical name and by function name.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Tool
	byFunc  map[string]*Tool
	ordered []*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Tool),
		byFunc: make(map[string]*Tool),
	}
}

// Register adds tools. Nothing is registered if any of them conflicts.
func (r *Registry) Register(tools ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []string
	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		fn := t.FunctionName()
		if _, ok := r.byName[t.Name()]; ok || seen[t.Name()] {
			conflicts = append(conflicts, t.Name())
			continue
		}
		if existing, ok := r.byFunc[fn]; ok {
			conflicts = append(conflicts, fmt.Sprintf("%s (function %s used by %s)", t.Name(), fn, existing.Name()))
			continue
		}
		if seen["fn:"+fn] {
			conflicts = append(conflicts, fmt.Sprintf("%s (function %s)", t.Name(), fn))
			continue
		}
		seen[t.Name()] = true
		seen["fn:"+fn] = true
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: %s", ErrToolConflict, strings.Join(conflicts, ", "))
	}

	for _, t := range tools {
		r.byName[t.Name()] = t
		r.byFunc[t.FunctionName()] = t
		r.ordered = append(r.ordered, t)
	}
	return nil
}

// Get finds a tool by logical name or function name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	if t, ok := r.byFunc[name]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// List returns tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Definitions describes every tool to a model, in registration order.
func (r *Registry) Definitions() []Definition {
	tools := r.List()
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Call invokes a tool by name. An unknown name yields an error envelope.
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) Envelope {
	t, err := r.Get(name)
	if err != nil {
		return failure(KindNotFound, CodeNotFound, err.Error(), "available tools: "+strings.Join(r.names(), ", "))
	}
	return t.Call(ctx, params)
}

func (r *Registry) names() []string {
	tools := r.List()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}
