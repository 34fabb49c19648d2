// Package queue is the dispatch queue: asynchronous tool calls are pushed
// onto a Redis list by the chat backend and drained by the worker process,
// which executes them and upserts the outcome into the result store.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list the worker drains unless configured otherwise.
const DefaultKey = "assistant:tool_calls"

// Task is one asynchronous tool invocation on the wire.
type Task struct {
	ToolName  string         `json:"tool_name"`
	CallID    string         `json:"call_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Dispatcher enqueues tasks, fire and forget.
type Dispatcher interface {
	Enqueue(ctx context.Context, task Task) error
}

// RedisQueue implements Dispatcher over a Redis list.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue on the given list key. key defaults to
// DefaultKey if empty.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode task %q: %w", task.CallID, err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queue: enqueue task %q: %w", task.CallID, err)
	}

	return nil
}
