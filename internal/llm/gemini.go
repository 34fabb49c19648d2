package llm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/srmx/assistant/internal/model"
	"google.golang.org/genai"
)

// GeminiClient implements Client on top of the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient wraps an already connected genai client.
func NewGeminiClient(client *genai.Client, modelName string) *GeminiClient {
	return &GeminiClient{client: client, model: modelName}
}

func (c *GeminiClient) Generate(ctx context.Context, conversation []model.Entry, tools []ToolSchema) (*Reply, error) {
	config := &genai.GenerateContentConfig{
		Tools: toGenAITools(tools),
	}

	contents := make([]*genai.Content, 0, len(conversation))
	for i, entry := range conversation {
		switch {
		case entry.Message != nil:
			// The leading system message becomes the system instruction.
			// Later system notices have no Gemini role, so they ride as user turns.
			if i == 0 && entry.Message.Role == model.RoleSystem {
				config.SystemInstruction = &genai.Content{
					Parts: []*genai.Part{{Text: entry.Message.Text()}},
				}
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  geminiRole(entry.Message.Role),
				Parts: []*genai.Part{{Text: entry.Message.Text()}},
			})
		case entry.ToolCall != nil:
			contents = append(contents, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						ID:   entry.ToolCall.CallID,
						Name: entry.ToolCall.Name,
						Args: entry.ToolCall.Arguments,
					},
				}},
			})
		case entry.ToolResult != nil:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:   entry.ToolResult.CallID,
						Name: callName(conversation[:i], entry.ToolResult.CallID),
						Response: map[string]any{
							"output": entry.ToolResult.Output,
							"status": string(entry.ToolResult.Status),
						},
					},
				}},
			})
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini generate: %w", err)
	}

	reply := &Reply{}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					// Gemini omits call ids; the result store needs one.
					id = uuid.NewString()
				}
				reply.ToolCalls = append(reply.ToolCalls, model.ToolCall{
					CallID:    id,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
				continue
			}
			if part.Text != "" {
				if reply.Text != "" {
					reply.Text += "\n"
				}
				reply.Text += part.Text
			}
		}
	}

	return reply, nil
}

func geminiRole(role model.Role) string {
	if role == model.RoleAssistant {
		return "model"
	}
	return "user"
}

// callName finds the tool name of an earlier call entry by its call id.
func callName(conversation []model.Entry, callID string) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if tc := conversation[i].ToolCall; tc != nil && tc.CallID == callID {
			return tc.Name
		}
	}
	return ""
}

func toGenAITools(tools []ToolSchema) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}
