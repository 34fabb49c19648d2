// Package llm defines the model-client contract and its provider
// implementations. The conversation state machine only depends on the
// Client interface; providers translate the entry union to and from their
// native wire shapes.
package llm

import (
	"context"

	"github.com/srmx/assistant/internal/model"
)

// ToolSchema describes one registered tool as exposed to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
}

// Reply is one model turn: the text output plus any tool calls the model
// elected to make. ToolCalls may be empty.
type Reply struct {
	Text      string
	ToolCalls []model.ToolCall
}

// Client generates the next model turn for a conversation.
type Client interface {
	Generate(ctx context.Context, conversation []model.Entry, tools []ToolSchema) (*Reply, error)
}
