package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/bench"
	goopenai "github.com/sashabaranov/go-openai"
)

// stream implements [bench.Stream] over a go-openai chat completion stream.
type stream struct {
	ctx     context.Context
	client  *Client
	raw     *goopenai.ChatCompletionStream
	req     bench.Request
	state   bench.StreamState
	resp    bench.Response
	text    strings.Builder
	pending []bench.Event
	usage   *goopenai.Usage
	started bool
	done    bool
	err     error
}

// Interface compliance check.
var _ bench.Stream = (*stream)(nil)

func newStream(ctx context.Context, c *Client, raw *goopenai.ChatCompletionStream, req bench.Request) *stream {
	return &stream{
		ctx:    ctx,
		client: c,
		raw:    raw,
		req:    req,
		state:  bench.StreamStateNew,
	}
}

// Next returns the next event. A chunk may carry both the first content and
// a finish reason, so events are queued and handed out one at a time.
func (s *stream) Next() (bench.Event, error) {
	switch s.state {
	case bench.StreamStateComplete:
		return nil, io.EOF
	case bench.StreamStateError:
		return nil, s.err
	case bench.StreamStateClosed:
		return nil, fmt.Errorf("%s: %w", s.client.name, bench.ErrStreamClosed)
	}

	for len(s.pending) == 0 {
		if s.done {
			s.state = bench.StreamStateComplete
			return nil, io.EOF
		}
		chunk, err := s.raw.Recv()
		if errors.Is(err, io.EOF) {
			s.state = bench.StreamStateStreaming
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

	evt := s.pending[0]
	s.pending = s.pending[1:]
	return evt, nil
}

func (s *stream) process(chunk goopenai.ChatCompletionStreamResponse) {
	if chunk.Model != "" {
		s.resp.Model = chunk.Model
	}
	for _, choice := range chunk.Choices {
		if delta := choice.Delta.Content; delta != "" {
			if !s.started {
				s.started = true
				s.pending = append(s.pending, bench.EventOutputStart{Index: choice.Index})
			}
			s.text.WriteString(delta)
			s.pending = append(s.pending, bench.EventTextDelta{Index: choice.Index, Delta: delta})
		}
		if choice.FinishReason != "" {
			s.resp.RawStopReason = string(choice.FinishReason)
			s.resp.StopReason = mapFinishReason(choice.FinishReason)
		}
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		s.usage = &u
	}
}

func (s *stream) finish() {
	s.done = true
	if s.resp.StopReason == "" {
		s.resp.StopReason = bench.StopUnknown
	}
	if s.usage != nil {
		s.resp.Usage = convertUsage(s.req, *s.usage, s.text.String())
	} else {
		s.resp.Usage = bench.EstimateUsage(s.req, s.text.String())
	}
	s.pending = append(s.pending, bench.EventStop{StopReason: s.resp.StopReason, Usage: s.resp.Usage})
}

func (s *stream) fail(err error) {
	s.state = bench.StreamStateError
	if s.ctx.Err() != nil {
		s.err = fmt.Errorf("%s: %w", s.client.name, err)
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
		return
	}
	s.err = s.client.wrapError(err)
	s.resp.StopReason = bench.StopError
	s.resp.RawStopReason = "error"
}

func (s *stream) State() bench.StreamState {
	return s.state
}

func (s *stream) Response() (bench.Response, error) {
	if s.state == bench.StreamStateNew {
		return bench.Response{}, fmt.Errorf("%s: %w", s.client.name, bench.ErrStreamNotReady)
	}
	resp := s.resp
	resp.Text = s.text.String()
	return resp, nil
}

// Close releases the underlying HTTP response.
func (s *stream) Close() error {
	if s.state != bench.StreamStateComplete && s.state != bench.StreamStateError {
		s.state = bench.StreamStateClosed
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
	}
	s.raw.Close()
	return nil
}
