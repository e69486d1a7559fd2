// Package errs defines the sidecar-wide error taxonomy.
//
// Kinds are sentinel values, not types: callers wrap a sentinel with
// fmt.Errorf("...: %w", ErrTransport) and test with errors.Is. This
// matches the fmt.Errorf("%w") idiom used throughout
// internal/session rather than introducing a parallel error-struct
// hierarchy.
package errs

import "errors"

var (
	// ErrTransport is a network failure talking to an LLM provider or
	// the editor. Retried up to N times with jittered backoff before
	// surfacing.
	ErrTransport = errors.New("transport error")

	// ErrProviderRejected is a 4xx/5xx response with a body. 4xx is
	// fatal for the exchange; 5xx follows the Transport retry policy.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrWrongFormat is raised when LLM output failed to parse as the
	// required shape (tool call, XML, JSON). One corrective retry is
	// allowed before the exchange fails.
	ErrWrongFormat = errors.New("wrong output format")

	// ErrToolInputInvalid is raised when structured tool input did not
	// match the tool's schema. Same corrective-retry policy as
	// ErrWrongFormat.
	ErrToolInputInvalid = errors.New("invalid tool input")

	// ErrWorkspaceError is raised when the editor returns a failure for
	// an RPC call; surfaced to the LLM as tool output, not retried
	// unless the underlying cause is Transport.
	ErrWorkspaceError = errors.New("workspace error")

	// ErrUserCancellation is fatal for the current exchange only, never
	// for the session.
	ErrUserCancellation = errors.New("cancelled by user")

	// ErrInternal marks an invariant violation. The exchange is marked
	// failed; the session is preserved.
	ErrInternal = errors.New("internal error")
)

// ProviderRejected carries the status code and body of a rejected
// provider request, comparable via errors.Is(err, ErrProviderRejected)
// and unwrapped via errors.As into *ProviderRejectedError.
type ProviderRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ProviderRejectedError) Error() string {
	return ErrProviderRejected.Error()
}

func (e *ProviderRejectedError) Unwrap() error {
	return ErrProviderRejected
}

// Retryable reports whether err represents a condition the LLM Broker's
// backoff policy should retry: Transport always, ProviderRejected only
// for 5xx.
func Retryable(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var rejected *ProviderRejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusCode >= 500
	}
	return false
}
