// Package agent implements the conversation state machine: for each inbound
// request it decides whether to continue a plain exchange, dispatch tool
// calls, or resolve previously dispatched calls, and produces the next
// conversation snapshot. The server holds no session state; conversations
// and pending-call lists round-trip through the client.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/llm"
	"github.com/srmx/assistant/internal/model"
	"github.com/srmx/assistant/internal/queue"
	"github.com/srmx/assistant/internal/repository"
	"github.com/srmx/assistant/internal/tools"
)

// ErrEmptyTurn is returned for a continuing request that carries neither a
// new message nor pending calls to resolve. There is nothing to do with
// such a request, so it is rejected rather than silently replayed.
var ErrEmptyTurn = errors.New("agent: request carries no message and no pending calls")

// Request is one inbound chat turn.
type Request struct {
	Message      string
	Conversation []model.Entry
	PendingCalls []model.PendingCall
}

// Response is the outcome of one turn. Retry marks a still-waiting poll;
// a non-empty PendingCalls list means the turn suspended on async tools.
type Response struct {
	Output       string
	Conversation []model.Entry
	PendingCalls []model.PendingCall
	Retry        bool
}

// Agent drives the state machine. All collaborators are injected; the agent
// itself keeps no mutable state between turns.
type Agent struct {
	llm               llm.Client
	registry          *tools.Registry
	executor          *tools.Executor
	results           repository.ToolResultRepository
	queue             queue.Dispatcher
	systemInstruction string
	logger            zerolog.Logger
}

// Config holds the agent's collaborators.
type Config struct {
	LLM               llm.Client
	Registry          *tools.Registry
	Executor          *tools.Executor
	Results           repository.ToolResultRepository
	Queue             queue.Dispatcher
	SystemInstruction string
	Logger            zerolog.Logger
}

// New creates an agent.
func New(cfg Config) *Agent {
	return &Agent{
		llm:               cfg.LLM,
		registry:          cfg.Registry,
		executor:          cfg.Executor,
		results:           cfg.Results,
		queue:             cfg.Queue,
		systemInstruction: cfg.SystemInstruction,
		logger:            cfg.Logger,
	}
}

// Turn processes one request. The conversation is treated as append-only:
// entries are never reordered or dropped, and on error the caller's payload
// is left untouched so the same request can be retried.
func (a *Agent) Turn(ctx context.Context, req Request) (*Response, error) {
	conversation, err := a.openTurn(req)
	if err != nil {
		return nil, err
	}

	if len(req.PendingCalls) > 0 {
		var remaining []model.PendingCall
		conversation, remaining, err = a.resolvePending(ctx, conversation, req.PendingCalls)
		if err != nil {
			return nil, err
		}
		if len(remaining) > 0 {
			// Still waiting on at least one call; no model call this turn.
			return &Response{
				Retry:        true,
				Conversation: conversation,
				PendingCalls: remaining,
			}, nil
		}
	}

	return a.advance(ctx, conversation)
}

// openTurn validates the request and appends the new user message, building
// a fresh conversation when none was supplied.
func (a *Agent) openTurn(req Request) ([]model.Entry, error) {
	message := strings.TrimSpace(req.Message)

	if len(req.Conversation) == 0 {
		if message == "" {
			return nil, ErrEmptyTurn
		}
		a.logger.Debug().Msg("agent: new conversation started")
		return []model.Entry{
			model.TextEntry(model.RoleSystem, a.systemInstruction),
			model.TextEntry(model.RoleUser, message),
		}, nil
	}

	// Work on a copy so a failed turn never mutates the caller's payload.
	conversation := make([]model.Entry, len(req.Conversation), len(req.Conversation)+4)
	copy(conversation, req.Conversation)

	if message != "" {
		return append(conversation, model.TextEntry(model.RoleUser, message)), nil
	}
	if len(req.PendingCalls) == 0 {
		return nil, ErrEmptyTurn
	}
	return conversation, nil
}

// resolvePending folds completed tool calls into the conversation and
// returns the calls still outstanding. An absent result store record is the
// same as a pending one: the backing store is eventually consistent.
func (a *Agent) resolvePending(ctx context.Context, conversation []model.Entry, pending []model.PendingCall) ([]model.Entry, []model.PendingCall, error) {
	var remaining []model.PendingCall

	for _, pc := range pending {
		record, err := a.results.Get(ctx, pc.MessageID)
		if err != nil {
			return nil, nil, fmt.Errorf("agent: look up call %q: %w", pc.MessageID, err)
		}

		if record == nil || record.Status == model.StatusPending {
			remaining = append(remaining, pc)
			continue
		}

		// Terminal: fold the original calls plus the outcome into the
		// conversation and drop the marker.
		for i := range pc.ToolCalls {
			tc := pc.ToolCalls[i]
			conversation = append(conversation, model.Entry{ToolCall: &tc})
		}
		conversation = append(conversation, model.Entry{ToolResult: &model.ToolResult{
			CallID: pc.MessageID,
			Output: record.Output,
			Status: record.Status,
		}})

		a.logger.Debug().
			Str("call_id", pc.MessageID).
			Str("status", string(record.Status)).
			Msg("agent: resolved pending call")
	}

	return conversation, remaining, nil
}

// advance makes a model call and acts on its reply: plain text completes the
// turn, synchronous tools are executed inline before one follow-up call, and
// asynchronous tools are dispatched with an aggregate in-progress notice.
// Synchronous calls always resolve before any asynchronous dispatch.
func (a *Agent) advance(ctx context.Context, conversation []model.Entry) (*Response, error) {
	reply, err := a.llm.Generate(ctx, conversation, a.registry.Schemas())
	if err != nil {
		return nil, fmt.Errorf("agent: model call: %w", err)
	}

	if len(reply.ToolCalls) == 0 {
		conversation = append(conversation, model.TextEntry(model.RoleAssistant, reply.Text))
		return &Response{Output: reply.Text, Conversation: conversation}, nil
	}

	var asyncCalls []model.ToolCall
	for i := range reply.ToolCalls {
		tc := reply.ToolCalls[i]
		if a.registry.IsAsync(tc.Name) {
			asyncCalls = append(asyncCalls, tc)
			continue
		}
		conversation = a.executeInline(ctx, conversation, tc)
	}

	if len(asyncCalls) == 0 {
		// Everything resolved inline; one follow-up call produces the answer.
		final, err := a.llm.Generate(ctx, conversation, a.registry.Schemas())
		if err != nil {
			return nil, fmt.Errorf("agent: follow-up model call: %w", err)
		}
		conversation = append(conversation, model.TextEntry(model.RoleAssistant, final.Text))
		return &Response{Output: final.Text, Conversation: conversation}, nil
	}

	pendingCalls, err := a.dispatch(ctx, asyncCalls)
	if err != nil {
		return nil, err
	}

	conversation = append(conversation, model.TextEntry(model.RoleSystem, progressNotice(asyncCalls)))
	output := a.phraseNotice(ctx, conversation, asyncCalls)
	conversation = append(conversation, model.TextEntry(model.RoleAssistant, output))

	return &Response{
		Output:       output,
		Conversation: conversation,
		PendingCalls: pendingCalls,
	}, nil
}

// executeInline runs a synchronous tool and appends call and result to the
// conversation. Tool failures become error-status results, not turn
// failures, so the model can acknowledge them.
func (a *Agent) executeInline(ctx context.Context, conversation []model.Entry, tc model.ToolCall) []model.Entry {
	result := model.ToolResult{CallID: tc.CallID, Status: model.StatusCompleted}

	output, err := a.executor.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		result.Status = model.StatusError
		result.Output = err.Error()
		a.logger.Warn().Err(err).Str("tool", tc.Name).Msg("agent: synchronous tool failed")
	} else {
		result.Output = model.SerializeOutput(output)
	}

	return append(conversation,
		model.Entry{ToolCall: &tc},
		model.Entry{ToolResult: &result},
	)
}

// dispatch enqueues each asynchronous call and returns one pending marker
// per call. The result store record is created pending at dispatch time so
// polls have something to find even before the worker picks the task up.
// Calls whose record already exists are not re-enqueued: a retried request
// whose earlier attempt failed partway must not run the same call twice.
func (a *Agent) dispatch(ctx context.Context, calls []model.ToolCall) ([]model.PendingCall, error) {
	pendingCalls := make([]model.PendingCall, 0, len(calls))

	for _, tc := range calls {
		existing, err := a.results.Get(ctx, tc.CallID)
		if err != nil {
			return nil, fmt.Errorf("agent: look up call %q: %w", tc.CallID, err)
		}

		if existing == nil {
			record := repository.ToolResultRecord{
				CallID:    tc.CallID,
				ToolName:  tc.Name,
				Arguments: tc.Arguments,
				Status:    model.StatusPending,
			}
			if err := a.results.Save(ctx, record); err != nil {
				return nil, fmt.Errorf("agent: create pending result %q: %w", tc.CallID, err)
			}

			task := queue.Task{ToolName: tc.Name, CallID: tc.CallID, Arguments: tc.Arguments}
			if err := a.queue.Enqueue(ctx, task); err != nil {
				return nil, fmt.Errorf("agent: dispatch call %q: %w", tc.CallID, err)
			}

			a.logger.Info().Str("tool", tc.Name).Str("call_id", tc.CallID).Msg("agent: dispatched async tool")
		} else {
			a.logger.Debug().Str("call_id", tc.CallID).Msg("agent: call already dispatched, not re-enqueueing")
		}

		pendingCalls = append(pendingCalls, model.PendingCall{
			ToolCalls: []model.ToolCall{tc},
			MessageID: tc.CallID,
		})
	}

	return pendingCalls, nil
}

// phraseNotice asks the model to word the in-progress notice for the end
// user. The calls are already dispatched at this point, so a failed phrasing
// call falls back to the raw notice instead of failing the turn and losing
// the pending markers.
func (a *Agent) phraseNotice(ctx context.Context, conversation []model.Entry, calls []model.ToolCall) string {
	reply, err := a.llm.Generate(ctx, conversation, a.registry.Schemas())
	if err != nil || reply.Text == "" {
		a.logger.Warn().Err(err).Msg("agent: notice phrasing call failed, using raw notice")
		return progressNotice(calls)
	}
	return reply.Text
}

// progressNotice builds the single aggregate notice covering every
// dispatched call in the turn.
func progressNotice(calls []model.ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, tc := range calls {
		names = append(names, tc.Name)
	}
	return fmt.Sprintf(
		"Tell the user that the following actions are in progress and results will follow shortly: %s. Phrase it professionally.",
		strings.Join(names, ", "),
	)
}
