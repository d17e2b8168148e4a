package bench

import (
	"context"
	"time"
)

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving deltas.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Response is the validated result of a completed provider call.
type Response struct {
	Text          string
	Model         string
	StopReason    StopReason
	RawStopReason string
	Usage         Usage
}

// Provider is a strategy pattern interface for LLM providers. Providers
// hold their credential from construction and are safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Streamer is implemented by providers that support incremental output.
type Streamer interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Stream uses a pull-based iterator pattern. Cancellation flows through the
// context passed to Streamer.Stream().
//
// Next() returns events until the terminal EventStop, then io.EOF.
//
// Response() returns the assembled Response. Behavior by stream state:
//   - StreamStateComplete: complete response, nil error.
//   - StreamStateError: partial response, nil error. StopReason is StopError
//     for transport/protocol failures, StopAborted for context cancellation.
//   - StreamStateStreaming: partial response, nil error.
//   - StreamStateNew: zero-value response, non-nil error.
//   - StreamStateClosed: partial response with StopReason = StopAborted.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	Response() (Response, error)
	Close() error
}

// Clock returns the current time. Strategies take one so tests can control
// elapsed durations.
type Clock func() time.Time
