package mock

import (
	"io"

	"github.com/fwojciec/bench"
)

// Interface compliance check.
var _ bench.Stream = (*Stream)(nil)

// Stream is a test double for bench.Stream.
// Set the function fields for the methods you need. NextFn and ResponseFn
// panic when nil to catch missing setup. CloseFn and StateFn are nil-safe
// (no-op and zero value) because test code commonly calls defer stream.Close()
// and these methods rarely need custom behavior.
type Stream struct {
	NextFn     func() (bench.Event, error)
	StateFn    func() bench.StreamState
	ResponseFn func() (bench.Response, error)
	CloseFn    func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (bench.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() bench.StreamState {
	if s.StateFn == nil {
		return bench.StreamStateNew
	}
	return s.StateFn()
}

// Response delegates to ResponseFn.
func (s *Stream) Response() (bench.Response, error) {
	return s.ResponseFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Scripted returns a Stream that yields events in order, then io.EOF, and
// reports resp once drained.
func Scripted(resp bench.Response, events ...bench.Event) *Stream {
	var i int
	state := bench.StreamStateNew
	return &Stream{
		NextFn: func() (bench.Event, error) {
			if i >= len(events) {
				state = bench.StreamStateComplete
				return nil, io.EOF
			}
			state = bench.StreamStateStreaming
			e := events[i]
			i++
			return e, nil
		},
		StateFn:    func() bench.StreamState { return state },
		ResponseFn: func() (bench.Response, error) { return resp, nil },
	}
}
