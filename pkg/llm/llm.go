package llm

import (
	"context"
	"errors"
	"fmt"
)

// BackendErrorKind classifies why a model backend call failed.
type BackendErrorKind string

const (
	BackendTimeout           BackendErrorKind = "timeout"
	BackendConnectionRefused BackendErrorKind = "connection_refused"
	BackendInvalidResponse   BackendErrorKind = "invalid_response"
)

// BackendError wraps a provider failure with a normalized kind so the
// engine can treat all backends uniformly.
type BackendError struct {
	Kind BackendErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %s", e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Err }

// BackendKind extracts the normalized kind from err. It returns the empty
// string when err carries no BackendError.
func BackendKind(err error) BackendErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// Completer is the non-streaming client interface every provider implements.
type Completer interface {
	// Complete sends the system prompt and message list to the model and
	// returns the full output text. Failures come back as *BackendError.
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)

	// Model returns the model identifier this client is bound to.
	Model() string

	// IsTransientError reports whether err is worth retrying
	// (503, rate limits, connection resets).
	IsTransientError(err error) bool
}
