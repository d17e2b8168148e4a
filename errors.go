package bench

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrConfig indicates a missing or invalid credential, model name or
	// other setting. It is reported at startup before any call is made.
	ErrConfig = errors.New("configuration error")

	// ErrProvider indicates a provider call failed: transport failure,
	// non-2xx response or malformed payload.
	ErrProvider = errors.New("provider call failed")

	// ErrStreamNotReady indicates Response() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrRunFinalized indicates a usage record arrived after the run's
	// metrics were frozen.
	ErrRunFinalized = errors.New("run already finalized")
)

// ProviderError describes a failed provider call. It matches ErrProvider
// with errors.Is.
type ProviderError struct {
	Provider   string // "anthropic", "openai", ...
	StatusCode int    // 0 when no HTTP response was received
	Type       string // provider-specific error type, if reported
	Message    string
	Err        error // underlying transport or decode error, if any
}

func (e *ProviderError) Error() string {
	switch {
	case e.Type != "":
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Type, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

// Unwrap returns both ErrProvider and the underlying cause so that
// errors.Is works for either.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}
