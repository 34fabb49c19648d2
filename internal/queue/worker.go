package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/model"
	"github.com/srmx/assistant/internal/repository"
)

const popTimeout = 5 * time.Second

// Worker drains the dispatch queue, executes each task through the tool
// executor and upserts its outcome into the result store. Handler errors
// become error-status results, never worker failures: the conversation loop
// surfaces them as tool output.
type Worker struct {
	client   *redis.Client
	key      string
	executor Executor
	results  repository.ToolResultRepository
	logger   zerolog.Logger
}

// Executor is the slice of the tool executor the worker needs.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// NewWorker creates a worker on the given list key. key defaults to
// DefaultKey if empty.
func NewWorker(client *redis.Client, key string, executor Executor, results repository.ToolResultRepository, logger zerolog.Logger) *Worker {
	if key == "" {
		key = DefaultKey
	}
	return &Worker{
		client:   client,
		key:      key,
		executor: executor,
		results:  results,
		logger:   logger,
	}
}

// Run blocks draining the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("key", w.key).Msg("queue: worker started")

	for {
		values, err := w.client.BRPop(ctx, popTimeout, w.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("queue: pop: %w", err)
		}

		// BRPop returns [key, value].
		if len(values) != 2 {
			continue
		}
		w.handle(ctx, []byte(values[1]))
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		w.logger.Error().Err(err).Msg("queue: discarding malformed task")
		return
	}

	logger := w.logger.With().Str("tool", task.ToolName).Str("call_id", task.CallID).Logger()
	logger.Info().Msg("queue: executing task")

	record := repository.ToolResultRecord{
		CallID:    task.CallID,
		ToolName:  task.ToolName,
		Arguments: task.Arguments,
	}

	output, err := w.executor.Execute(ctx, task.ToolName, task.Arguments)
	if err != nil {
		record.Status = model.StatusError
		record.Output = err.Error()
		logger.Warn().Err(err).Msg("queue: tool failed")
	} else {
		record.Status = model.StatusCompleted
		record.Output = model.SerializeOutput(output)
	}

	if err := w.results.Save(ctx, record); err != nil {
		logger.Error().Err(err).Msg("queue: failed to store tool result")
		return
	}

	logger.Info().Str("status", string(record.Status)).Msg("queue: task finished")
}
