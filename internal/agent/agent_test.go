package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/llm"
	"github.com/srmx/assistant/internal/model"
	"github.com/srmx/assistant/internal/queue"
	"github.com/srmx/assistant/internal/repository"
	"github.com/srmx/assistant/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	replies   []*llm.Reply
	calls     int
	failAfter int // fail every call at index >= failAfter; -1 never fails
	seen      [][]model.Entry
}

func (f *fakeLLM) Generate(ctx context.Context, conversation []model.Entry, _ []llm.ToolSchema) (*llm.Reply, error) {
	f.seen = append(f.seen, append([]model.Entry{}, conversation...))
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		f.calls++
		return nil, errors.New("model unavailable")
	}
	if f.calls >= len(f.replies) {
		f.calls++
		return &llm.Reply{Text: "ok"}, nil
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil
}

type fakeResults struct {
	records map[string]repository.ToolResultRecord
}

func newFakeResults() *fakeResults {
	return &fakeResults{records: make(map[string]repository.ToolResultRecord)}
}

func (f *fakeResults) Save(_ context.Context, record repository.ToolResultRecord) error {
	f.records[record.CallID] = record
	return nil
}

func (f *fakeResults) Get(_ context.Context, callID string) (*repository.ToolResultRecord, error) {
	record, ok := f.records[callID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

type fakeQueue struct {
	tasks  []queue.Task
	failOn string // Enqueue fails for this call id
}

func (f *fakeQueue) Enqueue(_ context.Context, task queue.Task) error {
	if f.failOn != "" && task.CallID == f.failOn {
		return errors.New("queue unavailable")
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()

	require.NoError(t, registry.Register(&tools.Tool{
		Name:        "lookup",
		Description: "synchronous lookup",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"answer": "42"}, nil
		},
	}))
	require.NoError(t, registry.Register(&tools.Tool{
		Name:        "broken_lookup",
		Description: "synchronous lookup that fails",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unreachable")
		},
	}))
	require.NoError(t, registry.Register(&tools.Tool{
		Name:        "notify",
		Description: "asynchronous notification",
		Async:       true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			t.Fatal("async handler must not run in the request path")
			return nil, nil
		},
	}))

	return registry
}

func newTestAgent(t *testing.T, client *fakeLLM, results *fakeResults, dispatcher *fakeQueue) *Agent {
	t.Helper()
	logger := zerolog.Nop()
	registry := testRegistry(t)
	return New(Config{
		LLM:               client,
		Registry:          registry,
		Executor:          tools.NewExecutor(registry, logger),
		Results:           results,
		Queue:             dispatcher,
		SystemInstruction: "You are an assistant.",
		Logger:            logger,
	})
}

func priorConversation() []model.Entry {
	return []model.Entry{
		model.TextEntry(model.RoleSystem, "You are an assistant."),
		model.TextEntry(model.RoleUser, "hello"),
		model.TextEntry(model.RoleAssistant, "hi, how can I help?"),
	}
}

func TestTurnFreshConversation(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{{Text: "hi there"}}}
	a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

	resp, err := a.Turn(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Output)
	assert.Empty(t, resp.PendingCalls)
	assert.False(t, resp.Retry)

	require.Len(t, resp.Conversation, 3)
	assert.Equal(t, model.RoleSystem, resp.Conversation[0].Message.Role)
	assert.Equal(t, model.RoleUser, resp.Conversation[1].Message.Role)
	assert.Equal(t, "hello", resp.Conversation[1].Message.Text())
	assert.Equal(t, model.RoleAssistant, resp.Conversation[2].Message.Role)
}

func TestTurnContinueAppendsExactlyOneUserEntry(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{{Text: "sure"}}}
	a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

	prior := priorConversation()
	resp, err := a.Turn(context.Background(), Request{Message: "one more thing", Conversation: prior})
	require.NoError(t, err)

	// The model saw the prior history plus exactly one new user entry.
	require.Len(t, client.seen, 1)
	require.Len(t, client.seen[0], len(prior)+1)
	appended := client.seen[0][len(prior)]
	require.NotNil(t, appended.Message)
	assert.Equal(t, model.RoleUser, appended.Message.Role)
	assert.Equal(t, "one more thing", appended.Message.Text())

	// Prior entries are untouched, in order.
	assert.Equal(t, prior, resp.Conversation[:len(prior)])
}

func TestTurnEmptyTurnRejected(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"fresh with no message", Request{}},
		{"continuing with no message and no pending calls", Request{Conversation: priorConversation()}},
		{"whitespace message", Request{Message: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeLLM{failAfter: -1}
			a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

			_, err := a.Turn(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrEmptyTurn)
			assert.Zero(t, client.calls)
		})
	}
}

func TestTurnSyncToolResolvesInline(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{
		{ToolCalls: []model.ToolCall{{CallID: "c1", Name: "lookup", Arguments: map[string]any{}}}},
		{Text: "the answer is 42"},
	}}
	dispatcher := &fakeQueue{}
	a := newTestAgent(t, client, newFakeResults(), dispatcher)

	resp, err := a.Turn(context.Background(), Request{Message: "what is the answer?"})
	require.NoError(t, err)

	// A synchronous call never suspends the turn.
	assert.Empty(t, resp.PendingCalls)
	assert.Empty(t, dispatcher.tasks)
	assert.Equal(t, "the answer is 42", resp.Output)
	assert.Equal(t, 2, client.calls)

	var call *model.ToolCall
	var result *model.ToolResult
	for _, entry := range resp.Conversation {
		if entry.ToolCall != nil {
			call = entry.ToolCall
		}
		if entry.ToolResult != nil {
			result = entry.ToolResult
		}
	}
	require.NotNil(t, call)
	require.NotNil(t, result)
	assert.Equal(t, "c1", call.CallID)
	assert.Equal(t, "c1", result.CallID)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.JSONEq(t, `{"answer":"42"}`, result.Output)
}

func TestTurnSyncToolErrorBecomesConversationContent(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{
		{ToolCalls: []model.ToolCall{{CallID: "c1", Name: "broken_lookup"}}},
		{Text: "sorry, that lookup failed"},
	}}
	a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

	resp, err := a.Turn(context.Background(), Request{Message: "look it up"})
	require.NoError(t, err)

	var result *model.ToolResult
	for _, entry := range resp.Conversation {
		if entry.ToolResult != nil {
			result = entry.ToolResult
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Output, "backend unreachable")
	assert.Empty(t, resp.PendingCalls)
}

func TestTurnAsyncToolDispatchesExactlyOnePendingCall(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{
		{ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify", Arguments: map[string]any{"message": map[string]any{"content": "ping"}}}}},
		{Text: "I am on it, results shortly"},
	}}
	results := newFakeResults()
	dispatcher := &fakeQueue{}
	a := newTestAgent(t, client, results, dispatcher)

	resp, err := a.Turn(context.Background(), Request{Message: "tell the owner"})
	require.NoError(t, err)

	require.Len(t, resp.PendingCalls, 1)
	assert.Equal(t, "a1", resp.PendingCalls[0].MessageID)
	require.Len(t, resp.PendingCalls[0].ToolCalls, 1)
	assert.Equal(t, "notify", resp.PendingCalls[0].ToolCalls[0].Name)

	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, "a1", dispatcher.tasks[0].CallID)

	// A pending record exists before the worker has run.
	record, err := results.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.StatusPending, record.Status)

	assert.Equal(t, "I am on it, results shortly", resp.Output)

	// The call itself stays out of the conversation until it resolves.
	for _, entry := range resp.Conversation {
		assert.Nil(t, entry.ToolCall)
	}
}

func TestTurnSyncResolvesBeforeAsyncDispatch(t *testing.T) {
	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{
		{ToolCalls: []model.ToolCall{
			{CallID: "a1", Name: "notify"},
			{CallID: "c1", Name: "lookup"},
		}},
		{Text: "lookup done, notification in progress"},
	}}
	dispatcher := &fakeQueue{}
	a := newTestAgent(t, client, newFakeResults(), dispatcher)

	resp, err := a.Turn(context.Background(), Request{Message: "do both"})
	require.NoError(t, err)

	// Only the async call is queued; the sync one resolved inline.
	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, "a1", dispatcher.tasks[0].CallID)
	require.Len(t, resp.PendingCalls, 1)

	var sawResult bool
	for _, entry := range resp.Conversation {
		if entry.ToolResult != nil && entry.ToolResult.CallID == "c1" {
			sawResult = true
		}
	}
	assert.True(t, sawResult, "sync result folded into the conversation")
}

func TestTurnStillWaitingIsIdempotent(t *testing.T) {
	pending := []model.PendingCall{{
		MessageID: "a1",
		ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify"}},
	}}

	client := &fakeLLM{failAfter: -1}
	a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

	req := Request{Conversation: priorConversation(), PendingCalls: pending}

	first, err := a.Turn(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Turn(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.Retry)
	assert.Equal(t, pending, first.PendingCalls)
	assert.Equal(t, first, second)

	// No model call is made while calls are outstanding.
	assert.Zero(t, client.calls)
	assert.Len(t, first.Conversation, len(priorConversation()))
}

func TestTurnPendingStatusIsRetained(t *testing.T) {
	results := newFakeResults()
	require.NoError(t, results.Save(context.Background(), repository.ToolResultRecord{
		CallID: "a1", ToolName: "notify", Status: model.StatusPending,
	}))

	client := &fakeLLM{failAfter: -1}
	a := newTestAgent(t, client, results, &fakeQueue{})

	resp, err := a.Turn(context.Background(), Request{
		Conversation: priorConversation(),
		PendingCalls: []model.PendingCall{{MessageID: "a1", ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify"}}}},
	})
	require.NoError(t, err)

	assert.True(t, resp.Retry)
	require.Len(t, resp.PendingCalls, 1)
	assert.Zero(t, client.calls)
}

func TestTurnCompletedResultIsFolded(t *testing.T) {
	results := newFakeResults()
	require.NoError(t, results.Save(context.Background(), repository.ToolResultRecord{
		CallID: "a1", ToolName: "notify", Status: model.StatusCompleted, Output: "42",
	}))

	client := &fakeLLM{failAfter: -1, replies: []*llm.Reply{{Text: "the owner replied: 42"}}}
	a := newTestAgent(t, client, results, &fakeQueue{})

	prior := priorConversation()
	resp, err := a.Turn(context.Background(), Request{
		Conversation: prior,
		PendingCalls: []model.PendingCall{{MessageID: "a1", ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify"}}}},
	})
	require.NoError(t, err)

	assert.False(t, resp.Retry)
	assert.Empty(t, resp.PendingCalls)
	assert.Equal(t, "the owner replied: 42", resp.Output)
	assert.Equal(t, 1, client.calls)

	// Folded as: prior..., tool call, tool result, assistant answer.
	require.Len(t, resp.Conversation, len(prior)+3)
	require.NotNil(t, resp.Conversation[len(prior)].ToolCall)
	require.NotNil(t, resp.Conversation[len(prior)+1].ToolResult)
	assert.Equal(t, "42", resp.Conversation[len(prior)+1].ToolResult.Output)
}

func TestTurnPartialResolutionStillWaits(t *testing.T) {
	results := newFakeResults()
	require.NoError(t, results.Save(context.Background(), repository.ToolResultRecord{
		CallID: "a1", ToolName: "notify", Status: model.StatusCompleted, Output: "done",
	}))

	client := &fakeLLM{failAfter: -1}
	a := newTestAgent(t, client, results, &fakeQueue{})

	resp, err := a.Turn(context.Background(), Request{
		Conversation: priorConversation(),
		PendingCalls: []model.PendingCall{
			{MessageID: "a1", ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify"}}},
			{MessageID: "a2", ToolCalls: []model.ToolCall{{CallID: "a2", Name: "notify"}}},
		},
	})
	require.NoError(t, err)

	assert.True(t, resp.Retry)
	require.Len(t, resp.PendingCalls, 1)
	assert.Equal(t, "a2", resp.PendingCalls[0].MessageID)
	assert.Zero(t, client.calls)

	// The completed call is already folded in while a2 is still out.
	var sawResult bool
	for _, entry := range resp.Conversation {
		if entry.ToolResult != nil && entry.ToolResult.CallID == "a1" {
			sawResult = true
		}
	}
	assert.True(t, sawResult)
}

func TestTurnRetriedDispatchDoesNotReEnqueue(t *testing.T) {
	replies := func() []*llm.Reply {
		return []*llm.Reply{
			{ToolCalls: []model.ToolCall{
				{CallID: "a1", Name: "notify"},
				{CallID: "a2", Name: "notify"},
			}},
			{Text: "working on both"},
		}
	}
	results := newFakeResults()

	// First attempt: the second enqueue fails after the first succeeded.
	dispatcher := &fakeQueue{failOn: "a2"}
	a := newTestAgent(t, &fakeLLM{failAfter: -1, replies: replies()}, results, dispatcher)

	_, err := a.Turn(context.Background(), Request{Message: "tell the owner twice"})
	require.Error(t, err)
	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, "a1", dispatcher.tasks[0].CallID)

	// The client retries the same payload once the queue is back. The call
	// already on the queue must not be enqueued a second time.
	dispatcher.failOn = ""
	a = newTestAgent(t, &fakeLLM{failAfter: -1, replies: replies()}, results, dispatcher)

	resp, err := a.Turn(context.Background(), Request{Message: "tell the owner twice"})
	require.NoError(t, err)

	require.Len(t, dispatcher.tasks, 2)
	assert.Equal(t, "a1", dispatcher.tasks[0].CallID)
	assert.Equal(t, "a2", dispatcher.tasks[1].CallID)
	require.Len(t, resp.PendingCalls, 2)
}

func TestTurnModelFailurePropagates(t *testing.T) {
	client := &fakeLLM{failAfter: 0}
	a := newTestAgent(t, client, newFakeResults(), &fakeQueue{})

	_, err := a.Turn(context.Background(), Request{Message: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyTurn)
}

func TestTurnNoticePhrasingFallsBack(t *testing.T) {
	// First call emits the async tool call, second (phrasing) call fails.
	client := &fakeLLM{failAfter: 1, replies: []*llm.Reply{
		{ToolCalls: []model.ToolCall{{CallID: "a1", Name: "notify"}}},
	}}
	dispatcher := &fakeQueue{}
	a := newTestAgent(t, client, newFakeResults(), dispatcher)

	resp, err := a.Turn(context.Background(), Request{Message: "tell the owner"})
	require.NoError(t, err)

	// The dispatch is not lost and the raw notice stands in for the phrased one.
	require.Len(t, resp.PendingCalls, 1)
	require.Len(t, dispatcher.tasks, 1)
	assert.Contains(t, resp.Output, "notify")
}
