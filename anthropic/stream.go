package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/bench"
)

// stream implements [bench.Stream] by parsing SSE events from an HTTP response body.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	ctx     context.Context
	req     bench.Request
	state   bench.StreamState
	resp    bench.Response
	text    strings.Builder
	blocks  map[int]string // block index -> block type
	usage   bool           // provider reported usage
	stopped bool           // EventStop emitted
	err     error          // terminal error, if any
}

// Interface compliance check.
var _ bench.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, req bench.Request) *stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &stream{
		body:    body,
		scanner: scanner,
		ctx:     ctx,
		req:     req,
		state:   bench.StreamStateNew,
		blocks:  make(map[int]string),
	}
}

// Next reads the next semantic event from the SSE stream.
// Returns io.EOF after the terminal EventStop.
func (s *stream) Next() (bench.Event, error) {
	switch s.state {
	case bench.StreamStateComplete:
		return nil, io.EOF
	case bench.StreamStateError:
		return nil, s.err
	case bench.StreamStateClosed:
		return nil, fmt.Errorf("anthropic: %w", bench.ErrStreamClosed)
	}
	if s.stopped {
		s.state = bench.StreamStateComplete
		return nil, io.EOF
	}

	for {
		eventType, data, err := s.readSSEEvent()
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}

		s.state = bench.StreamStateStreaming

		evt, err := s.processEvent(eventType, data)
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}
		if evt != nil {
			return evt, nil
		}
		// Non-semantic event (ping, message_start, etc.) - keep reading.
	}
}

// State returns the current stream state.
func (s *stream) State() bench.StreamState {
	return s.state
}

// Response returns the assembled Response.
func (s *stream) Response() (bench.Response, error) {
	if s.state == bench.StreamStateNew {
		return bench.Response{}, fmt.Errorf("anthropic: %w", bench.ErrStreamNotReady)
	}
	resp := s.resp
	resp.Text = s.text.String()
	return resp, nil
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != bench.StreamStateComplete && s.state != bench.StreamStateError {
		s.state = bench.StreamStateClosed
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
	}
	return s.body.Close()
}

// terminate records a terminal error and sets the appropriate state and stop reason.
func (s *stream) terminate(err error) {
	s.state = bench.StreamStateError
	if err == io.EOF {
		// Normal completion via message_stop never reaches here. A raw EOF
		// means the stream ended unexpectedly.
		s.err = &bench.ProviderError{Provider: providerName, Message: "unexpected end of stream"}
		s.resp.StopReason = bench.StopError
		s.resp.RawStopReason = "error"
		return
	}
	s.err = err
	if s.ctx.Err() != nil {
		s.resp.StopReason = bench.StopAborted
		s.resp.RawStopReason = "aborted"
	} else {
		s.resp.StopReason = bench.StopError
		s.resp.RawStopReason = "error"
	}
}

// readSSEEvent reads lines until a complete SSE event is assembled.
// Returns the event type and the data payload.
func (s *stream) readSSEEvent() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", &bench.ProviderError{Provider: providerName, Err: err}
	}

	// Scanner exhausted without error = EOF.
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// processEvent maps an SSE event to a semantic bench.Event.
// Returns nil event for non-semantic events (ping, message_start, etc.).
func (s *stream) processEvent(eventType, data string) (bench.Event, error) {
	switch eventType {
	case "message_start":
		return nil, s.handleMessageStart(data)
	case "content_block_start":
		return s.handleContentBlockStart(data)
	case "content_block_delta":
		return s.handleContentBlockDelta(data)
	case "message_delta":
		return nil, s.handleMessageDelta(data)
	case "message_stop":
		return s.handleMessageStop(), nil
	case "error":
		return nil, s.handleError(data)
	default:
		// ping, content_block_stop and unknown event types carry nothing
		// this stream reports.
		return nil, nil
	}
}

func (s *stream) handleMessageStart(data string) error {
	var evt sseMessageStart
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseError("message_start", err)
	}
	s.resp.Model = evt.Message.Model
	if evt.Message.Usage != nil {
		s.resp.Usage = convertUsage(*evt.Message.Usage)
		s.usage = true
	}
	return nil
}

func (s *stream) handleContentBlockStart(data string) (bench.Event, error) {
	var evt sseContentBlockStart
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseError("content_block_start", err)
	}
	s.blocks[evt.Index] = evt.ContentBlock.Type
	if evt.ContentBlock.Type != "text" {
		return nil, nil
	}
	s.text.WriteString(evt.ContentBlock.Text)
	return bench.EventOutputStart{Index: evt.Index}, nil
}

func (s *stream) handleContentBlockDelta(data string) (bench.Event, error) {
	var evt sseContentBlockDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, parseError("content_block_delta", err)
	}
	if _, ok := s.blocks[evt.Index]; !ok {
		return nil, &bench.ProviderError{
			Provider: providerName,
			Message:  fmt.Sprintf("delta for unknown block index %d", evt.Index),
		}
	}
	if evt.Delta.Type != "text_delta" {
		return nil, nil
	}
	s.text.WriteString(evt.Delta.Text)
	return bench.EventTextDelta{Index: evt.Index, Delta: evt.Delta.Text}, nil
}

// handleMessageDelta merges the cumulative usage of message_delta. Absent or
// null fields keep the values from message_start.
func (s *stream) handleMessageDelta(data string) error {
	var evt sseMessageDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseError("message_delta", err)
	}
	if u := evt.Usage; u != nil {
		s.usage = true
		s.resp.Usage.OutputTokens = max(0, u.OutputTokens)
		if u.InputTokens != nil {
			s.resp.Usage.InputTokens = max(0, *u.InputTokens)
		}
		if u.CacheCreationInputTokens != nil {
			s.resp.Usage.CacheWriteTokens += max(0, *u.CacheCreationInputTokens)
		}
		if u.CacheReadInputTokens != nil {
			s.resp.Usage.CacheReadTokens += max(0, *u.CacheReadInputTokens)
		}
	}
	if evt.Delta.StopReason != nil {
		s.resp.RawStopReason = *evt.Delta.StopReason
		s.resp.StopReason = mapStopReason(*evt.Delta.StopReason)
	}
	return nil
}

func (s *stream) handleMessageStop() bench.Event {
	s.stopped = true
	if !s.usage {
		s.resp.Usage = bench.EstimateUsage(s.req, s.text.String())
	}
	if s.resp.StopReason == "" {
		s.resp.StopReason = bench.StopUnknown
	}
	return bench.EventStop{StopReason: s.resp.StopReason, Usage: s.resp.Usage}
}

func (s *stream) handleError(data string) error {
	var evt sseError
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return parseError("error event", err)
	}
	return &bench.ProviderError{
		Provider: providerName,
		Type:     evt.Error.Type,
		Message:  evt.Error.Message,
	}
}

func parseError(what string, err error) error {
	return &bench.ProviderError{
		Provider: providerName,
		Message:  "failed to parse " + what,
		Err:      err,
	}
}
