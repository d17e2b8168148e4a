package gemini_test

import (
	"context"
	"io"
	"testing"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockChunks returns a genai-style streaming iterator from pre-built chunks.
func mockChunks(chunks []*genai.GenerateContentResponse) func(func(*genai.GenerateContentResponse, error) bool) {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func textChunk(text string, usage *genai.GenerateContentResponseUsageMetadata, finish genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: finish,
		}},
		UsageMetadata: usage,
	}
}

var hiRequest = bench.Request{Messages: []bench.Message{bench.UserText("Hi")}}

func collectStreamEvents(t *testing.T, s bench.Stream) []bench.Event {
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

func TestStream_TextDelta(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{
		textChunk("Hello", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 1}, ""),
		textChunk(" world", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5}, genai.FinishReasonStop),
	}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	events := collectStreamEvents(t, s)

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
	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, string(genai.FinishReasonStop), resp.RawStopReason)
}

func TestStream_SkipsThoughts(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "pondering", Thought: true}}},
		}},
	}, textChunk("Answer", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 1}, genai.FinishReasonStop)}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	events := collectStreamEvents(t, s)
	require.Len(t, events, 3)
	assert.Equal(t, bench.EventTextDelta{Index: 0, Delta: "Answer"}, events[1])
}

func TestStream_Usage(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{
		textChunk("Hi", &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:        210,
			CandidatesTokenCount:    5,
			CachedContentTokenCount: 200,
		}, genai.FinishReasonStop),
	}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	collectStreamEvents(t, s)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Usage.InputTokens) // 210 - 200
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	assert.Equal(t, 200, resp.Usage.CacheReadTokens)
	assert.Equal(t, 0, resp.Usage.CacheWriteTokens)
}

func TestStream_MissingUsageIsEstimated(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{textChunk("12345678", nil, genai.FinishReasonStop)}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	events := collectStreamEvents(t, s)

	stop, ok := events[len(events)-1].(bench.EventStop)
	require.True(t, ok)
	assert.True(t, stop.Usage.Estimated)
	assert.Equal(t, 2, stop.Usage.OutputTokens)
}

func TestStream_StopReasonMaxTokens(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{
		textChunk("truncated", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 100}, genai.FinishReasonMaxTokens),
	}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	collectStreamEvents(t, s)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopLength, resp.StopReason)
	assert.Equal(t, string(genai.FinishReasonMaxTokens), resp.RawStopReason)
}

func TestStream_StopReasonDefaultEndTurn(t *testing.T) {
	t.Parallel()
	chunks := []*genai.GenerateContentResponse{
		textChunk("hello", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5}, ""),
	}

	s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks), hiRequest)
	collectStreamEvents(t, s)

	resp, err := s.Response()
	require.NoError(t, err)
	assert.Equal(t, bench.StopEndTurn, resp.StopReason)
	assert.Equal(t, "end_turn", resp.RawStopReason)
}

func TestStream_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emptyIter := func(yield func(*genai.GenerateContentResponse, error) bool) {}

	s := gemini.NewStreamFromIter(ctx, emptyIter, hiRequest)
	_, err := s.Next()
	assert.ErrorIs(t, err, context.Canceled)

	resp, _ := s.Response()
	assert.Equal(t, bench.StopAborted, resp.StopReason)
}

func TestStream_IteratorError(t *testing.T) {
	t.Parallel()
	errIter := func(yield func(*genai.GenerateContentResponse, error) bool) {
		yield(nil, assert.AnError)
	}

	s := gemini.NewStreamFromIter(context.Background(), errIter, hiRequest)
	_, err := s.Next()
	assert.ErrorIs(t, err, bench.ErrProvider)
	assert.Contains(t, err.Error(), "gemini:")
	assert.Equal(t, bench.StreamStateError, s.State())

	resp, _ := s.Response()
	assert.Equal(t, bench.StopError, resp.StopReason)
}

func TestStream_State(t *testing.T) {
	t.Parallel()
	chunks := func() []*genai.GenerateContentResponse {
		return []*genai.GenerateContentResponse{
			textChunk("hi", &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 1, CandidatesTokenCount: 1}, genai.FinishReasonStop),
		}
	}

	t.Run("new before first next", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks()), hiRequest)
		assert.Equal(t, bench.StreamStateNew, s.State())
		_, err := s.Response()
		assert.ErrorIs(t, err, bench.ErrStreamNotReady)
	})

	t.Run("streaming after first next", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks()), hiRequest)
		_, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, bench.StreamStateStreaming, s.State())
	})

	t.Run("complete after EOF", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks()), hiRequest)
		collectStreamEvents(t, s)
		assert.Equal(t, bench.StreamStateComplete, s.State())
	})

	t.Run("closed after close mid-stream", func(t *testing.T) {
		t.Parallel()
		s := gemini.NewStreamFromIter(context.Background(), mockChunks(chunks()), hiRequest)
		_, err := s.Next()
		require.NoError(t, err)
		require.NoError(t, s.Close())
		assert.Equal(t, bench.StreamStateClosed, s.State())

		resp, err := s.Response()
		require.NoError(t, err)
		assert.Equal(t, bench.StopAborted, resp.StopReason)

		_, err = s.Next()
		assert.ErrorIs(t, err, bench.ErrStreamClosed)
	})
}
