package types

// Message represents one turn in a conversation. Role is one of
// "system", "user", "assistant" or "tool". Messages are immutable once
// appended to an exchange.
type Message struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionID"`
	Role      string       `json:"role"`
	Time      MessageTime  `json:"time"`

	// Content is the flattened text of the turn. Tool-result messages
	// set ToolCallID to the invocation they answer. CacheHint marks the
	// message as a prompt-cache boundary for providers that support it.
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"toolCallID,omitempty"`
	CacheHint  bool   `json:"cacheHint,omitempty"`

	// User-specific fields
	Agent  string          `json:"agent,omitempty"`
	Model  *ModelRef       `json:"model,omitempty"`
	System *string         `json:"system,omitempty"`
	Tools  map[string]bool `json:"tools,omitempty"`

	// Summary describes the changes a user turn led to.
	Summary *UserMessageSummary `json:"summary,omitempty"`

	// Path records where the daemon was rooted when the message was
	// produced, so tools resolve relative paths consistently on replay.
	Path *MessagePath `json:"path,omitempty"`

	// Assistant-specific fields
	ParentID   string        `json:"parentID,omitempty"`
	IsSummary  bool          `json:"isSummary,omitempty"`
	ModelID    string        `json:"modelID,omitempty"`
	ProviderID string        `json:"providerID,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	Finish     *string       `json:"finish,omitempty"`
	Cost       float64       `json:"cost,omitempty"`
	Tokens     *TokenUsage   `json:"tokens,omitempty"`
	Error      *MessageError `json:"error,omitempty"`
}

// MessagePath records the working directory and workspace root a
// message was produced under.
type MessagePath struct {
	Cwd  string `json:"cwd"`
	Root string `json:"root"`
}

// UserMessageSummary is the title, body and file diffs of a user turn.
type UserMessageSummary struct {
	Title string     `json:"title,omitempty"`
	Body  string     `json:"body,omitempty"`
	Diffs []FileDiff `json:"diffs,omitempty"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// TokenUsage contains token usage statistics for a message.
type TokenUsage struct {
	Input     int        `json:"input"`
	Output    int        `json:"output"`
	Reasoning int        `json:"reasoning,omitempty"`
	Cache     CacheUsage `json:"cache,omitempty"`
}

// CacheUsage contains cache hit/write statistics.
type CacheUsage struct {
	Read  int `json:"read"`
	Write int `json:"write"`
}

// MessageError represents an error that occurred during message processing.
type MessageError struct {
	Type    string `json:"type"` // "api" | "auth" | "output_length" | "unknown"
	Message string `json:"message"`
}

// NewUnknownError wraps an unexpected failure as a MessageError.
func NewUnknownError(message string) *MessageError {
	return &MessageError{Type: "unknown", Message: message}
}
