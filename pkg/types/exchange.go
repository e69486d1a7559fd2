package types

// ExchangeKind enumerates the kind of turn an Exchange records.
type ExchangeKind string

const (
	ExchangeHumanChat       ExchangeKind = "human_chat"
	ExchangeHumanAnchorEdit ExchangeKind = "human_anchor_edit"
	ExchangeHumanAgentic    ExchangeKind = "human_agentic"
	ExchangeAgentReply      ExchangeKind = "agent_reply"
	ExchangeToolUse         ExchangeKind = "tool_use"
)

// ExchangeStatus is the terminal/non-terminal state of an Exchange.
type ExchangeStatus string

const (
	ExchangeRunning   ExchangeStatus = "running"
	ExchangeSucceeded ExchangeStatus = "succeeded"
	ExchangeFailed    ExchangeStatus = "failed"
	ExchangeCancelled ExchangeStatus = "cancelled"
)

// Exchange is one request/response turn within a Session. It is the
// spec-level envelope over the session's underlying Message/Part
// records: the session engine builds and tears these down the way it
// already builds an assistant message plus its ToolParts in the
// session loop, just grouped and exposed through this envelope.
//
// Invariant: an exchange reaches a terminal status exactly once.
type Exchange struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"sessionID"`
	ParentExchangeID *string          `json:"parentExchangeID,omitempty"`
	Kind             ExchangeKind     `json:"kind"`
	Input            string           `json:"input"`
	OutputMessages   []*Message       `json:"outputMessages,omitempty"`
	ToolInvocations  []ToolInvocation `json:"toolInvocations,omitempty"`
	Status           ExchangeStatus   `json:"status"`
	CreatedAt        int64            `json:"createdAt"`
	EndedAt          *int64           `json:"endedAt,omitempty"`
}

// Terminal reports whether the exchange has reached a terminal status.
func (e *Exchange) Terminal() bool {
	switch e.Status {
	case ExchangeSucceeded, ExchangeFailed, ExchangeCancelled:
		return true
	default:
		return false
	}
}

// ToolInvocation records one tool call made during an exchange,
// pairing the call with its resolved output (if any).
type ToolInvocation struct {
	Call   ToolCall    `json:"call"`
	Output *ToolOutput `json:"output,omitempty"`
}
