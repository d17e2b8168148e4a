package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseResponse is a helper to build SSE responses for tests.
type sseResponse struct {
	events []sseEvent
}

type sseEvent struct {
	event string
	data  string
}

func (s sseResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range s.events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.event, evt.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

const messageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-20250514","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}`

// textStreamResponse returns a simple text streaming SSE response.
func textStreamResponse() sseResponse {
	return sseResponse{events: []sseEvent{
		{"message_start", messageStart},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"ping", `{"type":"ping"}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}}
}

func hiRequest() bench.Request {
	return bench.Request{Messages: []bench.Message{bench.UserText("Hi")}}
}

func streamFromSSE(t *testing.T, resp sseResponse) bench.Stream {
	t.Helper()
	srv := httptest.NewServer(resp.handler())
	t.Cleanup(srv.Close)
	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	stream, err := client.Stream(context.Background(), hiRequest())
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func collectEvents(t *testing.T, s bench.Stream) []bench.Event {
	t.Helper()
	var events []bench.Event
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

// documentRequest is a caching-scenario request: an instruction block and a
// large document block followed by a question.
func documentRequest() bench.Request {
	return bench.Request{
		System: []bench.Block{
			{Text: "Answer questions about the document."},
			{Text: "ACT I. SCENE I. Elsinore. A platform before the castle."},
		},
		Messages: []bench.Message{bench.UserText("Who is on guard?")},
	}
}

// TestStream_CachePrefixRoundTrip sends the same tagged prefix twice. The
// first call writes the cache, the second reads it.
func TestStream_CachePrefixRoundTrip(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		first := len(bodies) == 1
		mu.Unlock()

		cache := `"cache_creation_input_tokens":0,"cache_read_input_tokens":900`
		if first {
			cache = `"cache_creation_input_tokens":900,"cache_read_input_tokens":0`
		}
		sseResponse{events: []sseEvent{
			{"message_start", `{"type":"message_start","message":{"id":"msg_1","model":"m","usage":{"input_tokens":12,"output_tokens":1,` + cache + `}}}`},
			{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
			{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bernardo."}}`},
			{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`},
			{"message_stop", `{"type":"message_stop"}`},
		}}.handler()(w, r)
	}))
	defer srv.Close()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	req := bench.WithCachePrefix(documentRequest())

	var usages []bench.Usage
	for range 2 {
		s, err := client.Stream(context.Background(), req)
		require.NoError(t, err)
		d, err := bench.Drain(s, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.Equal(t, "Bernardo.", d.Response.Text)
		usages = append(usages, d.Response.Usage)
	}

	assert.Equal(t, bench.Usage{InputTokens: 12, OutputTokens: 4, CacheWriteTokens: 900}, usages[0])
	assert.Equal(t, bench.Usage{InputTokens: 12, OutputTokens: 4, CacheReadTokens: 900}, usages[1])

	require.Len(t, bodies, 2)
	for _, body := range bodies {
		system := body["system"].([]any)
		require.Len(t, system, 2)
		assert.NotContains(t, system[0].(map[string]any), "cache_control")
		assert.Equal(t, map[string]any{"type": "ephemeral"}, system[1].(map[string]any)["cache_control"])
		assert.Equal(t, true, body["stream"])
	}
}

// TestStream_UntaggedRequestHasNoBreakpoints checks that a stripped request
// sends no cache_control anywhere.
func TestStream_UntaggedRequestHasNoBreakpoints(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		raw []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		raw = body
		mu.Unlock()
		textStreamResponse().handler()(w, r)
	}))
	defer srv.Close()

	client := anthropic.New("test-key", anthropic.WithBaseURL(srv.URL))
	req := bench.StripCachePrefix(bench.WithCachePrefix(documentRequest()))
	s, err := client.Stream(context.Background(), req)
	require.NoError(t, err)
	collectEvents(t, s)
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, string(raw), "Elsinore")
	assert.NotContains(t, string(raw), "cache_control")
}
