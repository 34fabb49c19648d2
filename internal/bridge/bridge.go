// Package bridge talks to the chat-bot gateway that reaches the owner on
// their messaging platform. From the caller's point of view it is a single
// blocking call with a bounded timeout: send a message, poll for the reply,
// give up with a sentinel text when none arrives in time.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// NoReplySentinel is returned as the reply text when the owner does not
// answer before the timeout. It is conversation content, not an error.
const NoReplySentinel = "No reply received before the timeout."

const defaultPollInterval = 5 * time.Second

// Client sends a message through the bot and awaits the reply.
type Client interface {
	// SendAndAwaitReply blocks until a reply arrives, the timeout elapses
	// (returning NoReplySentinel), or ctx is done. waitFor optionally names
	// the identity whose reply is awaited.
	SendAndAwaitReply(ctx context.Context, text, waitFor string, timeout time.Duration) (string, error)
}

// HTTPClient implements Client against the bot gateway's JSON API.
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewHTTPClient creates a bridge client for the gateway at baseURL.
func NewHTTPClient(baseURL string, pollInterval time.Duration, logger zerolog.Logger) *HTTPClient {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &HTTPClient{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		logger:       logger,
	}
}

type sendRequest struct {
	Text    string `json:"text"`
	WaitFor string `json:"wait_for,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

func (c *HTTPClient) SendAndAwaitReply(ctx context.Context, text, waitFor string, timeout time.Duration) (string, error) {
	id, err := c.send(ctx, sendRequest{Text: text, WaitFor: waitFor})
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		reply, ok, err := c.poll(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			return reply, nil
		}
		if time.Now().After(deadline) {
			c.logger.Debug().Str("message_id", id).Msg("bridge: reply timed out")
			return NoReplySentinel, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) send(ctx context.Context, body sendRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("bridge: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("bridge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("bridge: send message: gateway returned %s", resp.Status)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("bridge: decode send response: %w", err)
	}
	return out.ID, nil
}

// poll returns ok=false while no reply exists yet.
func (c *HTTPClient) poll(ctx context.Context, id string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages/"+id+"/reply", nil)
	if err != nil {
		return "", false, fmt.Errorf("bridge: build poll request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("bridge: poll reply: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusNoContent:
		return "", false, nil
	case http.StatusOK:
		var out replyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, fmt.Errorf("bridge: decode reply: %w", err)
		}
		return out.Reply, true, nil
	default:
		return "", false, fmt.Errorf("bridge: poll reply: gateway returned %s", resp.Status)
	}
}
