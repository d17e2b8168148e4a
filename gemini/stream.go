package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/fwojciec/bench"
	"google.golang.org/genai"
)

// stream implements [bench.Stream] by wrapping the genai SDK's streaming iterator.
type stream struct {
	ctx     context.Context
	req     bench.Request
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	state   bench.StreamState
	resp    bench.Response
	text    strings.Builder
	pending []bench.Event
	started bool // EventOutputStart emitted
	usage   bool // provider reported usage
	done    bool // iterator exhausted and EventStop queued
	err     error
}

// Interface compliance check.
var _ bench.Stream = (*stream)(nil)

// NewStreamFromIter wraps a genai response iterator in a [bench.Stream].
// Exported for testing.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error], req bench.Request) bench.Stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:   ctx,
		req:   req,
		pull:  next,
		stop:  stop,
		state: bench.StreamStateNew,
	}
}

// Next returns the next event. Each chunk may yield several events, so they
// are queued and handed out one at a time.
func (s *stream) Next() (bench.Event, error) {
	switch s.state {
	case bench.StreamStateComplete:
		return nil, io.EOF
	case bench.StreamStateError:
		return nil, s.err
	case bench.StreamStateClosed:
		return nil, fmt.Errorf("gemini: %w", bench.ErrStreamClosed)
	}

	for len(s.pending) == 0 {
		if s.done {
			s.state = bench.StreamStateComplete
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			return nil, s.err
		}
		chunk, err, ok := s.pull()
		if !ok {
			s.finish()
			continue
		}
		if err != nil {
			s.fail(err)
			return nil, s.err
		}
		s.state = bench.StreamStateStreaming
		s.process(chunk)
	}

	s.state = bench.StreamStateStreaming
	evt := s.pending[0]
	s.pending = s.pending[1:]
	return evt, nil
}

func (s *stream) process(chunk *genai.GenerateContentResponse) {
	if chunk == nil {
		return
	}
	if chunk.ModelVersion != "" {
		s.resp.Model = chunk.ModelVersion
	}
	for _, cand := range chunk.Candidates {
		var sb strings.Builder
		if appendText(&sb, cand) {
			if !s.started {
				s.started = true
				s.pending = append(s.pending, bench.EventOutputStart{Index: 0})
			}
			s.text.WriteString(sb.String())
			s.pending = append(s.pending, bench.EventTextDelta{Index: 0, Delta: sb.String()})
		}
		if cand != nil && cand.FinishReason != "" {
			s.resp.RawStopReason = string(cand.FinishReason)
			s.resp.StopReason = mapFinishReason(cand.FinishReason)
		}
	}
	// Usage metadata is cumulative; the last chunk carries the totals.
	if chunk.UsageMetadata != nil {
		s.resp.Usage = ConvertUsage(chunk.UsageMetadata)
		s.usage = true
	}
}

func (s *stream) finish() {
	s.done = true
	if s.resp.StopReason == "" {
		s.resp.StopReason = bench.StopEndTurn
		s.resp.RawStopReason = "end_turn"
	}
	if !s.usage {
		s.resp.Usage = bench.EstimateUsage(s.req, s.text.String())
	}
	s.pending = append(s.pending, bench.EventStop{StopReason: s.resp.StopReason, Usage: s.resp.Usage})
}

func (s *stream) fail(err error) {
	s.state = bench.StreamStateError
	if s.ctx.Err() != nil {
		s.err = fmt.Errorf("gemini: %w", err)
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
		return
	}
	s.err = wrapError(err)
	s.resp.StopReason = bench.StopError
	s.resp.RawStopReason = "error"
}

func (s *stream) State() bench.StreamState {
	return s.state
}

func (s *stream) Response() (bench.Response, error) {
	if s.state == bench.StreamStateNew {
		return bench.Response{}, fmt.Errorf("gemini: %w", bench.ErrStreamNotReady)
	}
	resp := s.resp
	resp.Text = s.text.String()
	return resp, nil
}

func (s *stream) Close() error {
	if s.state != bench.StreamStateComplete && s.state != bench.StreamStateError {
		s.state = bench.StreamStateClosed
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
	}
	s.stop()
	return nil
}
