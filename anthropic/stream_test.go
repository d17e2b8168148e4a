package anthropic_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_TextResponse(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())

	events := collectEvents(t, s)

	require.Len(t, events, 4)
	assert.Equal(t, bench.EventOutputStart{Index: 0}, events[0])
	assert.Equal(t, bench.EventTextDelta{Index: 0, Delta: "Hello"}, events[1])
	assert.Equal(t, bench.EventTextDelta{Index: 0, Delta: " world"}, events[2])
	assert.Equal(t, bench.EventStop{
		StopReason: bench.StopEndTurn,
		Usage:      bench.Usage{InputTokens: 10, OutputTokens: 5},
	}, events[3])

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopEndTurn, resp.StopReason)
	assert.Equal(t, "end_turn", resp.RawStopReason)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
}

func TestStream_Drain(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())
	d, err := bench.Drain(s, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Stop)
	assert.False(t, d.FirstOutput.IsZero())
	assert.Equal(t, "Hello world", d.Response.Text)
}

func TestStream_IgnoresNonTextBlocks(t *testing.T) {
	t.Parallel()
	resp := sseResponse{events: []sseEvent{
		{"message_start", messageStart},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Answer"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":1}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":9}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}}

	s := streamFromSSE(t, resp)
	events := collectEvents(t, s)

	require.Len(t, events, 3)
	assert.Equal(t, bench.EventOutputStart{Index: 1}, events[0])
	assert.Equal(t, bench.EventTextDelta{Index: 1, Delta: "Answer"}, events[1])

	r, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, "Answer", r.Text)
}

func TestStream_State(t *testing.T) {
	t.Parallel()

	t.Run("new before first next", func(t *testing.T) {
		t.Parallel()
		s := streamFromSSE(t, textStreamResponse())
		assert.Equal(t, bench.StreamStateNew, s.State())
	})

	t.Run("streaming after first next", func(t *testing.T) {
		t.Parallel()
		s := streamFromSSE(t, textStreamResponse())
		_, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, bench.StreamStateStreaming, s.State())
	})

	t.Run("complete after EOF", func(t *testing.T) {
		t.Parallel()
		s := streamFromSSE(t, textStreamResponse())
		collectEvents(t, s)
		assert.Equal(t, bench.StreamStateComplete, s.State())
	})

	t.Run("closed after close mid-stream", func(t *testing.T) {
		t.Parallel()
		s := streamFromSSE(t, textStreamResponse())
		_, err := s.Next()
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.Equal(t, bench.StreamStateClosed, s.State())
	})
}

func TestStream_ResponseBeforeNext(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())
	_, err := s.Response()
	assert.ErrorIs(t, err, bench.ErrStreamNotReady)
}

func TestStream_ResponseMidStream(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())

	_, err := s.Next() // output start
	require.NoError(t, err)
	_, err = s.Next() // first text delta
	require.NoError(t, err)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Text)
}

func TestStream_CloseAbortsResponse(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())

	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopAborted, resp.StopReason)
}

func TestStream_ClosePreservesTerminalState(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())
	collectEvents(t, s)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopEndTurn, resp.StopReason)

	// Close after terminal state should preserve the stop reason.
	require.NoError(t, s.Close())
	resp, err = s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopEndTurn, resp.StopReason)
}

func TestStream_NextAfterClose(t *testing.T) {
	t.Parallel()
	s := streamFromSSE(t, textStreamResponse())
	require.NoError(t, s.Close())

	_, err := s.Next()
	assert.ErrorIs(t, err, bench.ErrStreamClosed)
}

func TestStream_SSEError(t *testing.T) {
	t.Parallel()
	resp := sseResponse{events: []sseEvent{
		{"message_start", messageStart},
		{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
	}}

	s := streamFromSSE(t, resp)
	_, err := s.Next()
	assert.ErrorIs(t, err, bench.ErrProvider)
	assert.Contains(t, err.Error(), "overloaded_error")
}

func TestStream_ContextCancellation(t *testing.T) {
	t.Parallel()

	// Server that blocks after first event.
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		fmt.Fprintf(w, "event: message_start\ndata: %s\n\n", messageStart)
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		close(started)
		// Block until request context is cancelled.
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	s, err := client.Stream(ctx, hiRequest())
	require.NoError(t, err)
	defer s.Close()

	evt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, bench.EventOutputStart{Index: 0}, evt)
	evt, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, bench.EventTextDelta{Index: 0, Delta: "Hi"}, evt)

	// Wait for server to block, then cancel.
	<-started
	cancel()

	_, err = s.Next()
	assert.Error(t, err)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopAborted, resp.StopReason)
	assert.Equal(t, bench.StreamStateError, s.State())
}

func TestStream_StopReasons(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want bench.StopReason
	}{
		{"end_turn", bench.StopEndTurn},
		{"stop_sequence", bench.StopEndTurn},
		{"max_tokens", bench.StopLength},
		{"new_reason", bench.StopUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			resp := sseResponse{events: []sseEvent{
				{"message_start", messageStart},
				{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
				{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Ok"}}`},
				{"message_delta", fmt.Sprintf(`{"type":"message_delta","delta":{"stop_reason":%q},"usage":{"output_tokens":3}}`, tt.raw)},
				{"message_stop", `{"type":"message_stop"}`},
			}}
			s := streamFromSSE(t, resp)
			collectEvents(t, s)

			r, err := s.Response()
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.StopReason)
			assert.Equal(t, tt.raw, r.RawStopReason)
		})
	}
}

func TestStream_CacheUsage(t *testing.T) {
	t.Parallel()

	withCache := `{"type":"message_start","message":{"id":"msg_1","model":"m","usage":{"input_tokens":10,"output_tokens":1,"cache_creation_input_tokens":50,"cache_read_input_tokens":200}}}`
	tests := []struct {
		name      string
		start     string
		deltaUse  string
		wantWrite int
		wantRead  int
	}{
		{"from message_start", withCache, `{"output_tokens":5}`, 50, 200},
		{"cumulative delta", withCache, `{"output_tokens":5,"cache_creation_input_tokens":10,"cache_read_input_tokens":30}`, 60, 230},
		{"delta null keeps start values", withCache, `{"output_tokens":5,"cache_creation_input_tokens":null,"cache_read_input_tokens":null}`, 50, 200},
		{"null in message_start", `{"type":"message_start","message":{"id":"msg_1","model":"m","usage":{"input_tokens":10,"output_tokens":1,"cache_creation_input_tokens":null,"cache_read_input_tokens":null}}}`, `{"output_tokens":5}`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := sseResponse{events: []sseEvent{
				{"message_start", tt.start},
				{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
				{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`},
				{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":` + tt.deltaUse + `}`},
				{"message_stop", `{"type":"message_stop"}`},
			}}
			s := streamFromSSE(t, resp)
			events := collectEvents(t, s)

			stop, ok := events[len(events)-1].(bench.EventStop)
			require.True(t, ok)
			assert.Equal(t, 10, stop.Usage.InputTokens)
			assert.Equal(t, 5, stop.Usage.OutputTokens)
			assert.Equal(t, tt.wantWrite, stop.Usage.CacheWriteTokens)
			assert.Equal(t, tt.wantRead, stop.Usage.CacheReadTokens)
			assert.False(t, stop.Usage.Estimated)
		})
	}
}

func TestStream_DeltaInputTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		deltaUse string
		want     int
	}{
		{"delta present updates InputTokens", `{"output_tokens":5,"input_tokens":120}`, 120},
		{"delta absent preserves message_start InputTokens", `{"output_tokens":5}`, 10},
		{"delta null preserves message_start InputTokens", `{"output_tokens":5,"input_tokens":null}`, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := sseResponse{events: []sseEvent{
				{"message_start", messageStart},
				{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":` + tt.deltaUse + `}`},
				{"message_stop", `{"type":"message_stop"}`},
			}}
			s := streamFromSSE(t, resp)
			collectEvents(t, s)

			r, err := s.Response()
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Usage.InputTokens)
		})
	}
}

func TestStream_MissingUsageIsEstimated(t *testing.T) {
	t.Parallel()
	resp := sseResponse{events: []sseEvent{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","model":"m"}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"12345678"}}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}}
	s := streamFromSSE(t, resp)
	events := collectEvents(t, s)

	stop, ok := events[len(events)-1].(bench.EventStop)
	require.True(t, ok)
	assert.True(t, stop.Usage.Estimated)
	assert.Equal(t, 2, stop.Usage.OutputTokens)
}

func TestStream_ReadErrorMidStream(t *testing.T) {
	t.Parallel()

	// Server that sends partial SSE then closes connection abruptly.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		fmt.Fprintf(w, "event: message_start\ndata: %s\n\n", messageStart)
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		// Connection closes without message_stop, simulating network failure.
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer srv.Close()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	s, err := client.Stream(context.Background(), hiRequest())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Next() // output start
	require.NoError(t, err)
	evt, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, bench.EventTextDelta{Index: 0, Delta: "partial"}, evt)

	_, err = s.Next()
	assert.Error(t, err)
	assert.Equal(t, bench.StreamStateError, s.State())

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopError, resp.StopReason)
	assert.Equal(t, "partial", resp.Text)
}

func TestStream_CachedPrefixStrategy(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(textStreamResponse().handler())
	t.Cleanup(srv.Close)
	client := anthropic.New("k", anthropic.WithBaseURL(srv.URL))

	s := &bench.CachedPrefixStreaming{Streamer: client}
	req := bench.Request{
		System:   []bench.Block{{Text: "doc"}},
		Messages: []bench.Message{bench.UserText("q")},
	}
	m, err := s.Execute(context.Background(), []bench.Request{req, req})
	require.NoError(t, err)
	assert.Equal(t, 30, m.TotalTokens)
	require.NotNil(t, m.TTFT)
	assert.Zero(t, m.EstimatedCalls)
}
