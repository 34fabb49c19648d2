package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/srmx/assistant/internal/bridge"
)

// NewMessageOwnerTool returns the asynchronous tool that relays a message to
// the owner through the chat-bot bridge and waits for their reply. It may
// block on a human for minutes, so it always runs on the dispatch queue.
func NewMessageOwnerTool(b bridge.Client, ownerName string, timeout time.Duration) *Tool {
	return &Tool{
		Name:        "message_owner",
		Description: "Send a message to " + ownerName + " via the chat bot and wait for their reply.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content": map[string]any{
							"type":        "string",
							"description": "The content of the message",
						},
					},
					"required":             []string{"content"},
					"additionalProperties": false,
				},
			},
			"required":             []string{"message"},
			"additionalProperties": false,
		},
		Strict: true,
		Async:  true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			content, err := messageContent(args)
			if err != nil {
				return nil, err
			}

			reply, err := b.SendAndAwaitReply(ctx, content, ownerName, timeout)
			if err != nil {
				return nil, fmt.Errorf("message_owner: %w", err)
			}
			return reply, nil
		},
	}
}

func messageContent(args map[string]any) (string, error) {
	message, ok := args["message"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("message_owner: message argument is required")
	}
	content, ok := message["content"].(string)
	if !ok || content == "" {
		return "", fmt.Errorf("message_owner: message.content is required")
	}
	return content, nil
}
