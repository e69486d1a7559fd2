// Package llmbroker implements the provider-neutral streaming client:
// it selects a Provider from the registry, performs per-request
// cancellation, and delivers incremental deltas to a caller-supplied
// sink in stream order.
package llmbroker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/codeglide/sidecar/internal/errs"
	"github.com/codeglide/sidecar/internal/logging"
	"github.com/codeglide/sidecar/internal/provider"
)

// Delta is one incremental piece of a streaming completion.
type Delta struct {
	Content      string
	ToolCallArgs []schema.ToolCall
	Reasoning    string
}

// DeltaSink receives ordered deltas for a single request. Implementations
// must not block indefinitely — the broker delivers deltas synchronously
// as they arrive off the wire.
type DeltaSink func(Delta)

// Final is the terminal value of a stream_completion call: the
// concatenated completion plus token-usage counters.
type Final struct {
	Content      string
	ToolCalls    []schema.ToolCall
	Usage        Usage
	Cancelled    bool
}

// Usage carries token accounting for a completed request.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
	CacheWriteTokens int
}

// Request carries everything needed to drive a chat/completion call,
// independent of which provider ultimately serves it.
type Request struct {
	Model       string
	Messages    []*schema.Message
	Tools       []*schema.ToolInfo
	Temperature float64
	MaxTokens   int
	StopWords   []string
	// CacheHints marks message indices that should be treated as
	// prompt-cache boundaries, honoured only if the provider reports
	// SupportsCacheHints.
	CacheHints []int
}

// Broker multiplexes chat/completion and FIM requests across the
// registered providers, retrying Transport failures with jittered
// backoff and resolving cancellation races to a Cancelled Final
// without emitting further deltas.
type Broker struct {
	registry          *provider.Registry
	maxRetries        uint64
	inactivityTimeout time.Duration
}

// New creates a Broker backed by the given provider registry.
func New(registry *provider.Registry) *Broker {
	return &Broker{
		registry:          registry,
		maxRetries:        3,
		inactivityTimeout: InactivityTimeout,
	}
}

// SetInactivityTimeout overrides the per-stream inactivity timeout.
func (b *Broker) SetInactivityTimeout(d time.Duration) {
	if d > 0 {
		b.inactivityTimeout = d
	}
}

// SetMaxRetries overrides how many times Transport failures are retried.
func (b *Broker) SetMaxRetries(n uint64) {
	b.maxRetries = n
}

// checkModel verifies the resolved provider actually serves the
// requested model. Providers that report no model catalog (custom
// endpoints) accept any model id.
func checkModel(p provider.Provider, modelID string) error {
	if modelID == "" {
		return nil
	}
	models := p.Models()
	if len(models) == 0 {
		return nil
	}
	for _, m := range models {
		if m.ID == modelID {
			return nil
		}
	}
	return WrongProviderForModel(p.ID(), modelID)
}

// StreamCompletion drives a chat/completion request against
// providerKey, forwarding deltas to sink in stream order. If the
// consumer's sink returns without draining further, the broker still
// drains the upstream reader itself so the underlying connection is
// released instead of leaked.
func (b *Broker) StreamCompletion(ctx context.Context, providerKey string, req *Request, sink DeltaSink) (*Final, error) {
	p, err := b.registry.Get(providerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrWrongFormat, err.Error())
	}
	if err := checkModel(p, req.Model); err != nil {
		return nil, err
	}

	var final *Final
	op := func() error {
		f, opErr := b.attemptCompletion(ctx, p, req, sink)
		if opErr != nil {
			if errors.Is(opErr, errs.ErrUserCancellation) {
				return backoff.Permanent(opErr)
			}
			if errs.Retryable(opErr) {
				return opErr
			}
			return backoff.Permanent(opErr)
		}
		final = f
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries)
	bo2 := backoff.WithContext(bo, ctx)
	if err := backoff.Retry(func() error {
		retryErr := op()
		if retryErr != nil && !errors.Is(retryErr, errs.ErrUserCancellation) {
			logging.Warn().Err(retryErr).Str("provider", providerKey).Msg("llm broker retrying completion")
		}
		return retryErr
	}, bo2); err != nil {
		if errors.Is(err, errs.ErrUserCancellation) {
			return &Final{Cancelled: true}, nil
		}
		return nil, err
	}
	return final, nil
}

type recvResult struct {
	msg *schema.Message
	err error
}

func (b *Broker) attemptCompletion(ctx context.Context, p provider.Provider, req *Request, sink DeltaSink) (*Final, error) {
	stream, err := p.CreateCompletion(ctx, &provider.CompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		StopWords:   req.StopWords,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrTransport, err.Error())
	}
	defer stream.Close()

	// One reader goroutine owns stream.Recv so the consuming loop can
	// also watch cancellation and the inactivity clock. When the
	// consumer abandons the stream the reader keeps draining it so the
	// underlying connection is released rather than leaked.
	recvCh := make(chan recvResult)
	consumerGone := make(chan struct{})
	defer close(consumerGone)
	go func() {
		for {
			msg, recvErr := stream.Recv()
			select {
			case recvCh <- recvResult{msg: msg, err: recvErr}:
			case <-consumerGone:
				if recvErr == nil {
					for {
						if _, drainErr := stream.Recv(); drainErr != nil {
							return
						}
					}
				}
				return
			}
			if recvErr != nil {
				return
			}
		}
	}()

	// The inactivity clock resets on every delta; a provider that goes
	// quiet for longer than the timeout is treated as a Transport
	// failure eligible for retry.
	idle := time.NewTimer(b.inactivityTimeout)
	defer idle.Stop()

	final := &Final{}
	for {
		select {
		case <-ctx.Done():
			return nil, errs.ErrUserCancellation

		case <-idle.C:
			return nil, fmt.Errorf("%w: stream idle for %s", errs.ErrTransport, b.inactivityTimeout)

		case r := <-recvCh:
			if r.err != nil {
				if r.err.Error() == "EOF" {
					return final, nil
				}
				// Any other read failure during an active stream is a
				// transport condition eligible for retry.
				return nil, fmt.Errorf("%w: %s", errs.ErrTransport, r.err.Error())
			}
			if r.msg == nil {
				return final, nil
			}

			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(b.inactivityTimeout)

			delta := Delta{Content: r.msg.Content}
			if len(r.msg.ToolCalls) > 0 {
				delta.ToolCallArgs = r.msg.ToolCalls
				final.ToolCalls = append(final.ToolCalls, r.msg.ToolCalls...)
			}
			final.Content += r.msg.Content

			if sink != nil {
				sink(delta)
			}

			if r.msg.ResponseMeta != nil && r.msg.ResponseMeta.Usage != nil {
				final.Usage.InputTokens = r.msg.ResponseMeta.Usage.PromptTokens
				final.Usage.OutputTokens = r.msg.ResponseMeta.Usage.CompletionTokens
			}
		}
	}
}

// StringFinal is the terminal value of a FIM string-completion call.
type StringFinal struct {
	Content   string
	Cancelled bool
}

// StreamStringCompletion issues a raw-prompt (FIM) completion request,
// forwarding text deltas to sink in order. The same inactivity clock
// applies: FIM requests are latency-sensitive, so a quiet stream fails
// fast instead of pinning the editor's completion request.
func (b *Broker) StreamStringCompletion(ctx context.Context, providerKey string, req *provider.StringCompletionRequest, sink func(string)) (*StringFinal, error) {
	p, err := b.registry.Get(providerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrWrongFormat, err.Error())
	}
	if err := checkModel(p, req.Model); err != nil {
		return nil, err
	}

	stream, err := p.StreamStringCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrTransport, err.Error())
	}
	defer stream.Close()

	type stringRecv struct {
		chunk string
		err   error
	}
	recvCh := make(chan stringRecv)
	consumerGone := make(chan struct{})
	defer close(consumerGone)
	go func() {
		for {
			chunk, recvErr := stream.Recv()
			select {
			case recvCh <- stringRecv{chunk: chunk, err: recvErr}:
			case <-consumerGone:
				return
			}
			if recvErr != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(b.inactivityTimeout)
	defer idle.Stop()

	final := &StringFinal{}
	for {
		select {
		case <-ctx.Done():
			return &StringFinal{Cancelled: true}, nil

		case <-idle.C:
			return final, fmt.Errorf("%w: stream idle for %s", errs.ErrTransport, b.inactivityTimeout)

		case r := <-recvCh:
			if r.err != nil {
				return final, nil
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(b.inactivityTimeout)
			final.Content += r.chunk
			if sink != nil {
				sink(r.chunk)
			}
		}
	}
}

// WrongProviderForModel is returned when a requested model id is not
// served by the resolved provider.
func WrongProviderForModel(providerKey, modelID string) error {
	return fmt.Errorf("%w: model %q is not served by provider %q", errs.ErrWrongFormat, modelID, providerKey)
}

// InactivityTimeout is the default LLM stream inactivity timeout.
const InactivityTimeout = 120 * time.Second
