// Package tools holds the registry of tools the model may call and the
// executor that dispatches to them by name.
package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/llm"
)

// Handler executes one tool invocation over its declared schema.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is one registered tool. Async tools run on the dispatch queue and
// resolve through the result store; sync tools run inline in the request.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
	Async       bool
	Handler     Handler
}

// Registry maps tool names to their declarations, in registration order.
type Registry struct {
	byName map[string]*Tool
	names  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool)}
}

// Register adds a tool. Names must be unique and handlers non-nil.
func (r *Registry) Register(t *Tool) error {
	if t == nil {
		return fmt.Errorf("tools: tool cannot be nil")
	}
	if t.Name == "" {
		return fmt.Errorf("tools: tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: tool %q has no handler", t.Name)
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("tools: tool %q already registered", t.Name)
	}

	r.byName[t.Name] = t
	r.names = append(r.names, t.Name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// IsAsync reports whether a tool runs on the dispatch queue. Unknown names
// are treated as synchronous no-ops.
func (r *Registry) IsAsync(name string) bool {
	t, ok := r.byName[name]
	return ok && t.Async
}

// Schemas returns the tool declarations exposed to the model, in
// registration order.
func (r *Registry) Schemas() []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(r.names))
	for _, name := range r.names {
		t := r.byName[name]
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Strict:      t.Strict,
		})
	}
	return schemas
}

// Executor runs tools by name.
type Executor struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, logger zerolog.Logger) *Executor {
	return &Executor{registry: registry, logger: logger}
}

// Execute runs the named tool. An unknown name is a no-op with empty output:
// the tool set is closed and schema-checked upstream, so an unrecognized
// name must not fail the turn.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := e.registry.Get(name)
	if !ok {
		e.logger.Warn().Str("tool", name).Msg("tools: unknown tool requested")
		return nil, nil
	}

	e.logger.Debug().Str("tool", name).Msg("tools: executing")
	return t.Handler(ctx, args)
}
