package model

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ResultStatus is the lifecycle state of a tool invocation. A result is
// created as pending and moves to completed or error exactly once.
type ResultStatus string

const (
	StatusPending   ResultStatus = "pending"
	StatusCompleted ResultStatus = "completed"
	StatusError     ResultStatus = "error"
)

// ContentBlock is a typed text payload inside a message.
type ContentBlock struct {
	Type string `json:"type" bson:"type"`
	Text string `json:"text" bson:"text"`
}

// BlockTypeText is the only block type the backend emits today.
const BlockTypeText = "text"

// Message is one plain turn in a conversation.
type Message struct {
	Role    Role           `json:"role" bson:"role"`
	Content []ContentBlock `json:"content" bson:"content"`
}

// Text joins the message's text blocks.
func (m *Message) Text() string {
	switch len(m.Content) {
	case 0:
		return ""
	case 1:
		return m.Content[0].Text
	}
	out := ""
	for i, b := range m.Content {
		if i > 0 {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	CallID    string         `json:"call_id" bson:"call_id"`
	Name      string         `json:"name" bson:"name"`
	Arguments map[string]any `json:"arguments,omitempty" bson:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool invocation, keyed back to its call.
type ToolResult struct {
	CallID string       `json:"call_id" bson:"call_id"`
	Output string       `json:"output" bson:"output"`
	Status ResultStatus `json:"status" bson:"status"`
}

// Entry is one element of a conversation: exactly one of the three fields is
// set. The union is closed, so every entry serializes by construction.
type Entry struct {
	Message    *Message    `json:"message,omitempty" bson:"message,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty" bson:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty" bson:"tool_result,omitempty"`
}

// Valid reports whether exactly one variant of the union is set.
func (e Entry) Valid() bool {
	n := 0
	if e.Message != nil {
		n++
	}
	if e.ToolCall != nil {
		n++
	}
	if e.ToolResult != nil {
		n++
	}
	return n == 1
}

// TextEntry builds a plain text message entry.
func TextEntry(role Role, text string) Entry {
	return Entry{Message: &Message{
		Role:    role,
		Content: []ContentBlock{{Type: BlockTypeText, Text: text}},
	}}
}

// PendingCall is the caller-held marker for a dispatched asynchronous tool
// call that has not resolved yet. MessageID is the call_id polled against
// the result store.
type PendingCall struct {
	ToolCalls []ToolCall `json:"tool_calls" bson:"tool_calls"`
	MessageID string     `json:"message_id" bson:"message_id"`
}

// SerializeOutput renders a tool's output as the string that goes into the
// conversation. Strings pass through; everything else is JSON-encoded.
func SerializeOutput(v any) string {
	switch out := v.(type) {
	case nil:
		return ""
	case string:
		return out
	default:
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("%v", out)
		}
		return string(data)
	}
}
