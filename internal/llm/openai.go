package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/srmx/assistant/internal/model"
)

// OpenAIClient implements Client on top of the OpenAI chat completions API.
// OpenAI assigns tool-call ids natively, so they pass through untouched.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient wraps an OpenAI API client.
func NewOpenAIClient(client *openai.Client, modelName string) *OpenAIClient {
	return &OpenAIClient{client: client, model: modelName}
}

func (c *OpenAIClient) Generate(ctx context.Context, conversation []model.Entry, tools []ToolSchema) (*Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, entry := range conversation {
		switch {
		case entry.Message != nil:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    string(entry.Message.Role),
				Content: entry.Message.Text(),
			})
		case entry.ToolCall != nil:
			args, err := json.Marshal(entry.ToolCall.Arguments)
			if err != nil {
				return nil, fmt.Errorf("llm: encode arguments for %s: %w", entry.ToolCall.Name, err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   entry.ToolCall.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      entry.ToolCall.Name,
						Arguments: string(args),
					},
				}},
			})
		case entry.ToolResult != nil:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    entry.ToolResult.Output,
				ToolCallID: entry.ToolResult.CallID,
			})
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    toOpenAITools(tools),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: openai completion returned no choices")
	}

	choice := resp.Choices[0].Message
	reply := &Reply{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("llm: decode arguments for %s: %w", tc.Function.Name, err)
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, model.ToolCall{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return reply, nil
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
				Strict:      t.Strict,
			},
		})
	}
	return out
}
