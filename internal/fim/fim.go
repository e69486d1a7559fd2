// Package fim implements fill-in-the-middle prompt formatting for
// inline editor completions, plus the process-wide cancellation
// registry FIM requests are keyed into.
package fim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/codeglide/sidecar/internal/provider"
)

// Request describes an inline-completion request.
type Request struct {
	Prefix    string
	Suffix    string
	Model     string
	StopWords []string
}

const (
	// MaxTokens is the fixed output budget for FIM completions.
	MaxTokens = 512
	// Temperature is always zero for FIM completions.
	Temperature = 0
)

// Formatter renders a raw completion prompt from a prefix/suffix pair.
type Formatter interface {
	Format(prefix, suffix string) string
}

// DeepSeekFormatter renders DeepSeek's FIM token template.
type DeepSeekFormatter struct{}

// Format produces "<｜fim▁begin｜>{prefix}<｜fim▁hole｜>{suffix}<｜fim▁end｜>".
func (DeepSeekFormatter) Format(prefix, suffix string) string {
	return "<｜fim▁begin｜>" + prefix + "<｜fim▁hole｜>" + suffix + "<｜fim▁end｜>"
}

// CodeLlamaFormatter renders CodeLlama's FIM token template.
type CodeLlamaFormatter struct{}

// Format produces "<PRE> {prefix} <SUF>{suffix} <MID>".
func (CodeLlamaFormatter) Format(prefix, suffix string) string {
	return "<PRE> " + prefix + " <SUF>" + suffix + " <MID>"
}

// formatterForModel selects a formatter by model family. Models outside
// the known families fall back to DeepSeek's template, the broader
// convention among open FIM-capable models.
func formatterForModel(modelID string) Formatter {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "codellama"), strings.Contains(lower, "code-llama"):
		return CodeLlamaFormatter{}
	default:
		return DeepSeekFormatter{}
	}
}

// BuildPrompt selects a formatter for req.Model and renders the raw
// completion prompt.
func BuildPrompt(req Request) string {
	return formatterForModel(req.Model).Format(req.Prefix, req.Suffix)
}

// Dispatcher issues FIM completions against the LLM Broker's raw
// string-completion capability and tracks in-flight requests in the
// process-wide cancellation registry.
type Dispatcher struct {
	registry *CancellationRegistry
}

// NewDispatcher creates a FIM dispatcher backed by the given
// cancellation registry.
func NewDispatcher(registry *CancellationRegistry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Complete issues a string-completion request for requestID, returning
// the concatenated completion text. Cancelling requestID via the
// registry aborts the underlying context.
func (d *Dispatcher) Complete(ctx context.Context, requestID string, prov provider.Provider, req Request) (string, error) {
	cctx, cancel := context.WithCancel(ctx)
	d.registry.Insert(requestID, cancel)
	defer d.registry.Remove(requestID)

	prompt := BuildPrompt(req)

	stream, err := prov.StreamStringCompletion(cctx, &provider.StringCompletionRequest{
		Model:       req.Model,
		Prompt:      prompt,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		StopWords:   req.StopWords,
	})
	if err != nil {
		return "", fmt.Errorf("fim: failed to start completion: %w", err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		delta, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.Canceled) || cctx.Err() != nil {
				return out.String(), context.Canceled
			}
			return out.String(), fmt.Errorf("fim: stream error: %w", err)
		}
		out.WriteString(delta)
	}

	return out.String(), nil
}

// CancellationRegistry is the process-wide concurrent map from
// request id to abort handle shared process-wide. Insert is idempotent
// by id: a second insert for the same id is a no-op that leaves the
// first handle live. Cancel is best-effort and idempotent: cancelling
// twice is a no-op.
type CancellationRegistry struct {
	mu      sync.Mutex
	handles map[string]context.CancelFunc
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{handles: make(map[string]context.CancelFunc)}
}

// Insert registers cancel under requestID. If requestID is already
// registered, the existing handle is kept and cancel is discarded —
// the second insert observes the first — the registry's idempotence
// property.
func (r *CancellationRegistry) Insert(requestID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[requestID]; exists {
		return
	}
	r.handles[requestID] = cancel
}

// Cancel aborts the request registered under requestID, if any.
// Cancelling an unknown or already-cancelled id is a no-op.
func (r *CancellationRegistry) Cancel(requestID string) {
	r.mu.Lock()
	cancel, ok := r.handles[requestID]
	delete(r.handles, requestID)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Remove drops requestID from the registry without cancelling it
// (called once a request completes normally).
func (r *CancellationRegistry) Remove(requestID string) {
	r.mu.Lock()
	delete(r.handles, requestID)
	r.mu.Unlock()
}
