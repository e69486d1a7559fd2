package session

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeglide/sidecar/internal/event"
	"github.com/codeglide/sidecar/internal/llmbroker"
	"github.com/codeglide/sidecar/internal/provider"
	"github.com/codeglide/sidecar/internal/storage"
	"github.com/codeglide/sidecar/internal/tool"
	"github.com/codeglide/sidecar/pkg/types"
)

// scriptStep describes one completion the scripted provider serves.
type scriptStep struct {
	deltas    []string
	interval  time.Duration
	toolCalls []schema.ToolCall
}

// scriptedProvider serves a fixed sequence of completions, one per
// CreateCompletion call, re-serving the last step once exhausted.
type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	steps []scriptStep
}

func (p *scriptedProvider) ID() string            { return "scripted" }
func (p *scriptedProvider) Name() string          { return "Scripted" }
func (p *scriptedProvider) Models() []types.Model { return []types.Model{{ID: "scripted-model"}} }
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel { return nil }
func (p *scriptedProvider) SupportsCacheHints() bool              { return false }

func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	p.mu.Lock()
	idx := p.calls
	if idx >= len(p.steps) {
		idx = len(p.steps) - 1
	}
	step := p.steps[idx]
	p.calls++
	p.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(step.deltas) + 1)
	go func() {
		defer sw.Close()
		for _, d := range step.deltas {
			if step.interval > 0 {
				time.Sleep(step.interval)
			}
			if sw.Send(&schema.Message{Role: schema.Assistant, Content: d}, nil) {
				return
			}
		}
		if len(step.toolCalls) > 0 {
			sw.Send(&schema.Message{Role: schema.Assistant, ToolCalls: step.toolCalls}, nil)
		}
	}()
	return provider.NewCompletionStream(sr), nil
}

func (p *scriptedProvider) StreamStringCompletion(ctx context.Context, req *provider.StringCompletionRequest) (*provider.StringCompletionStream, error) {
	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		sw.Send(&schema.Message{Role: schema.Assistant, Content: "ok"}, nil)
	}()
	return provider.NewStringCompletionStream(sr), nil
}

func newTestEngine(t *testing.T, steps []scriptStep) (*Engine, *storage.Storage) {
	t.Helper()
	store := storage.New(t.TempDir())
	reg := provider.NewRegistry(nil)
	reg.Register(&scriptedProvider{steps: steps})

	tools := tool.NewRegistry(t.TempDir(), store)
	tools.Register(tool.NewThinkingTool())
	tools.Register(tool.NewAttemptCompletionTool())

	svc := NewService(store)
	return NewEngine(svc, llmbroker.New(reg), tools, nil, "scripted", "scripted-model"), store
}

// drain consumes the stream to its terminal event, returning every
// event in arrival order.
func drain(t *testing.T, stream *event.ExchangeStream) []event.UIEvent {
	t.Helper()
	var events []event.UIEvent
	for {
		ev, ok := stream.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func TestExchange_PlainReplySucceeds(t *testing.T) {
	engine, _ := newTestEngine(t, []scriptStep{
		{deltas: []string{"hello ", "world"}},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-plain",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "say hello",
	})
	require.NoError(t, err)

	events := drain(t, stream)
	require.NotEmpty(t, events)
	assert.Equal(t, event.UIExchangeStarted, events[0].Type)

	last := events[len(events)-1]
	require.Equal(t, event.UIExchangeFinished, last.Type)
	assert.Equal(t, types.ExchangeSucceeded, last.ExchangeFinished.Status)

	var text string
	for _, ev := range events {
		if ev.Type == event.UITextDelta {
			text += ev.TextDelta.Content
		}
	}
	assert.Equal(t, "hello world", text)
}

func TestExchange_EventSequenceMonotonic(t *testing.T) {
	engine, _ := newTestEngine(t, []scriptStep{
		{deltas: []string{"a", "b", "c"}},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-seq",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "q",
	})
	require.NoError(t, err)

	events := drain(t, stream)
	var prev uint64
	finished := 0
	for _, ev := range events {
		assert.Greater(t, ev.Seq, prev)
		prev = ev.Seq
		if ev.Type == event.UIExchangeFinished {
			finished++
		}
	}
	assert.Equal(t, 1, finished)
	assert.Equal(t, event.UIExchangeFinished, events[len(events)-1].Type)
}

func TestExchange_CancellationStopsDeltas(t *testing.T) {
	deltas := make([]string, 100)
	for i := range deltas {
		deltas[i] = "x"
	}
	engine, _ := newTestEngine(t, []scriptStep{
		{deltas: deltas, interval: 10 * time.Millisecond},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-cancel",
		ExchangeID:    "ex-cancel",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "stream forever",
	})
	require.NoError(t, err)

	seen := 0
	var events []event.UIEvent
	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}
		events = append(events, ev)
		if ev.Type == event.UITextDelta {
			seen++
			if seen == 3 {
				require.True(t, engine.Cancel("sess-cancel", "ex-cancel"))
			}
		}
	}

	last := events[len(events)-1]
	require.Equal(t, event.UIExchangeFinished, last.Type)
	assert.Equal(t, types.ExchangeCancelled, last.ExchangeFinished.Status)

	total := 0
	for _, ev := range events {
		if ev.Type == event.UITextDelta {
			assert.Less(t, ev.Seq, last.Seq, "no deltas after terminal event")
			total++
		}
	}
	assert.LessOrEqual(t, total, 5)
}

func TestExchange_AppendOnlyAcrossTurns(t *testing.T) {
	thinkingCall := schema.ToolCall{
		ID: "call-1",
		Function: schema.FunctionCall{
			Name:      "thinking",
			Arguments: `{"thought":"planning"}`,
		},
	}
	engine, store := newTestEngine(t, []scriptStep{
		{toolCalls: []schema.ToolCall{thinkingCall}},
		{deltas: []string{"first done"}},
		{toolCalls: []schema.ToolCall{thinkingCall}},
		{deltas: []string{"second done"}},
	})

	root := t.TempDir()
	for _, query := range []string{"first turn", "second turn"} {
		stream, err := engine.Start(context.Background(), StartRequest{
			SessionID:     "sess-append",
			WorkspaceRoot: root,
			UserQuery:     query,
		})
		require.NoError(t, err)
		drain(t, stream)
	}

	svc := NewService(store)
	sess, err := svc.Get(context.Background(), "sess-append")
	require.NoError(t, err)
	require.Len(t, sess.Exchanges, 2)

	assert.Equal(t, "first turn", sess.Exchanges[0].Input)
	assert.Equal(t, "second turn", sess.Exchanges[1].Input)
	require.NotNil(t, sess.Exchanges[1].ParentExchangeID)
	assert.Equal(t, sess.Exchanges[0].ID, *sess.Exchanges[1].ParentExchangeID)

	for _, ex := range sess.Exchanges {
		assert.Equal(t, types.ExchangeSucceeded, ex.Status)
		require.NotNil(t, ex.EndedAt)
		assert.LessOrEqual(t, ex.CreatedAt, *ex.EndedAt)
		require.Len(t, ex.ToolInvocations, 1)
		assert.Equal(t, "thinking", ex.ToolInvocations[0].Call.ToolName)
	}
	assert.LessOrEqual(t, *sess.Exchanges[0].EndedAt, sess.Exchanges[1].CreatedAt)
}

func TestExchange_XMLToolCallFallback(t *testing.T) {
	engine, _ := newTestEngine(t, []scriptStep{
		{deltas: []string{"<thinking><tho", "ught>quietly</thought></thinking>"}},
		{deltas: []string{"done"}},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-xml",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "use xml",
	})
	require.NoError(t, err)

	events := drain(t, stream)
	var sawCall, sawResult bool
	for _, ev := range events {
		if ev.Type == event.UIToolCall && ev.ToolCall.Name == "thinking" {
			sawCall = true
			var in struct {
				Thought string `json:"thought"`
			}
			require.NoError(t, json.Unmarshal(ev.ToolCall.Input, &in))
			assert.Equal(t, "quietly", in.Thought)
		}
		if ev.Type == event.UIToolResult {
			sawResult = true
		}
	}
	assert.True(t, sawCall)
	assert.True(t, sawResult)
}

func TestExchange_AttemptCompletionTerminates(t *testing.T) {
	engine, store := newTestEngine(t, []scriptStep{
		{toolCalls: []schema.ToolCall{{
			ID: "call-done",
			Function: schema.FunctionCall{
				Name:      "attempt_completion",
				Arguments: `{"result":"all set"}`,
			},
		}}},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-complete",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "finish",
	})
	require.NoError(t, err)
	events := drain(t, stream)

	last := events[len(events)-1]
	assert.Equal(t, types.ExchangeSucceeded, last.ExchangeFinished.Status)

	svc := NewService(store)
	sess, err := svc.Get(context.Background(), "sess-complete")
	require.NoError(t, err)
	require.Len(t, sess.Exchanges, 1)
	assert.Equal(t, types.ExchangeSucceeded, sess.Exchanges[0].Status)
}

func TestExchange_PersistedSessionReplaysByteIdentical(t *testing.T) {
	engine, store := newTestEngine(t, []scriptStep{
		{deltas: []string{"stable"}},
	})

	stream, err := engine.Start(context.Background(), StartRequest{
		SessionID:     "sess-replay",
		WorkspaceRoot: t.TempDir(),
		UserQuery:     "persist me",
	})
	require.NoError(t, err)
	drain(t, stream)

	svc := NewService(store)
	sess, err := svc.Get(context.Background(), "sess-replay")
	require.NoError(t, err)

	first, err := json.Marshal(sess)
	require.NoError(t, err)

	var reparsed types.Session
	require.NoError(t, json.Unmarshal(first, &reparsed))
	second, err := json.Marshal(&reparsed)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
}

func TestExchange_UndoTruncatesExchanges(t *testing.T) {
	engine, store := newTestEngine(t, []scriptStep{
		{deltas: []string{"one"}},
		{deltas: []string{"two"}},
	})

	root := t.TempDir()
	for _, q := range []string{"turn one", "turn two"} {
		stream, err := engine.Start(context.Background(), StartRequest{
			SessionID:     "sess-undo",
			WorkspaceRoot: root,
			UserQuery:     q,
		})
		require.NoError(t, err)
		drain(t, stream)
	}

	svc := NewService(store)
	sess, err := svc.Get(context.Background(), "sess-undo")
	require.NoError(t, err)
	require.Len(t, sess.Exchanges, 2)

	require.NoError(t, engine.Undo(context.Background(), "sess-undo", sess.Exchanges[1].ID, nil))

	sess, err = svc.Get(context.Background(), "sess-undo")
	require.NoError(t, err)
	assert.Len(t, sess.Exchanges, 1)
	assert.Equal(t, "turn one", sess.Exchanges[0].Input)
}
