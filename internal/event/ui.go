package event

import (
	"encoding/json"
	"sync"

	"github.com/codeglide/sidecar/pkg/types"
)

// UIEventType enumerates the streaming UI events emitted to the editor
// while an exchange runs. Ordering is monotonic per exchange and the
// stream ends with exactly one exchange_finished event.
type UIEventType string

const (
	UIExchangeStarted  UIEventType = "exchange_started"
	UITextDelta        UIEventType = "text_delta"
	UIThinking         UIEventType = "thinking"
	UIToolCall         UIEventType = "tool_call"
	UIToolResult       UIEventType = "tool_result"
	UIFileEdit         UIEventType = "file_edit"
	UIExchangeFinished UIEventType = "exchange_finished"
)

// UIEvent is one event on an exchange's UI stream. Seq is assigned by
// the emitting ExchangeStream and strictly increases within the stream.
type UIEvent struct {
	Seq        uint64      `json:"seq"`
	Type       UIEventType `json:"type"`
	SessionID  string      `json:"sessionID"`
	ExchangeID string      `json:"exchangeID"`

	// Exactly one of the following is set, matching Type.
	TextDelta        *TextDeltaData        `json:"textDelta,omitempty"`
	Thinking         *ThinkingData         `json:"thinking,omitempty"`
	ToolCall         *ToolCallData         `json:"toolCall,omitempty"`
	ToolResult       *ToolResultData       `json:"toolResult,omitempty"`
	FileEdit         *FileEditData         `json:"fileEdit,omitempty"`
	ExchangeFinished *ExchangeFinishedData `json:"exchangeFinished,omitempty"`
}

// TextDeltaData carries one increment of assistant text.
type TextDeltaData struct {
	Content string `json:"content"`
}

// ThinkingData carries one increment of assistant reasoning text.
type ThinkingData struct {
	Content string `json:"content"`
}

// ToolCallData announces a recognised tool call before it is invoked.
type ToolCallData struct {
	Name         string          `json:"name"`
	InvocationID string          `json:"invocationID"`
	Input        json.RawMessage `json:"input,omitempty"`
}

// ToolResultData carries the structured outcome of a tool invocation.
// Tool failures travel here, never as transport-level errors.
type ToolResultData struct {
	InvocationID string          `json:"invocationID"`
	Output       json.RawMessage `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// FileEditData reports a workspace edit applied during the exchange.
type FileEditData struct {
	Path    string            `json:"path"`
	Range   types.SymbolRange `json:"range"`
	NewText string            `json:"newText"`
}

// ExchangeFinishedData is the terminal event of every exchange stream.
type ExchangeFinishedData struct {
	Status types.ExchangeStatus `json:"status"`
}

// ExchangeStream is the per-exchange event queue: senders never block,
// receivers drain in emission order. It is the channel the HTTP layer
// drains into the SSE response.
type ExchangeStream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []UIEvent
	seq    uint64
	closed bool

	sessionID  string
	exchangeID string
}

// NewExchangeStream creates an empty stream for one exchange.
func NewExchangeStream(sessionID, exchangeID string) *ExchangeStream {
	s := &ExchangeStream{sessionID: sessionID, exchangeID: exchangeID}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Emit appends an event of the given type, stamping session, exchange
// and the next sequence number. Emitting on a closed stream is a no-op
// so late producers racing a cancellation cannot corrupt the stream.
func (s *ExchangeStream) Emit(t UIEventType, fill func(*UIEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	ev := UIEvent{
		Seq:        s.seq,
		Type:       t,
		SessionID:  s.sessionID,
		ExchangeID: s.exchangeID,
	}
	if fill != nil {
		fill(&ev)
	}
	s.events = append(s.events, ev)
	s.cond.Broadcast()
	if t == UIExchangeFinished {
		s.closed = true
	}
}

// Next blocks until an event is available or the stream is drained
// after close. The second return is false once every emitted event has
// been consumed and no more will arrive.
func (s *ExchangeStream) Next() (UIEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.events) == 0 {
		if s.closed {
			return UIEvent{}, false
		}
		s.cond.Wait()
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

// Close terminates the stream without a terminal event. Used only when
// the producer died before emitting exchange_finished.
func (s *ExchangeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}
