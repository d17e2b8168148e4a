package bench_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedProvider(u bench.Usage) *mock.Provider {
	return &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			return bench.Response{Text: "ok", StopReason: bench.StopEndTurn, Usage: u}, nil
		},
	}
}

func requests(n int) []bench.Request {
	reqs := make([]bench.Request, n)
	for i := range reqs {
		reqs[i] = bench.Request{
			System:   []bench.Block{{Text: "document"}},
			Messages: []bench.Message{bench.UserText(fmt.Sprintf("question %d", i))},
		}
	}
	return reqs
}

func TestSequential_FixedUsage(t *testing.T) {
	t.Parallel()
	s := &bench.Sequential{
		Provider: fixedProvider(bench.Usage{InputTokens: 100, OutputTokens: 50}),
		Clock:    newFakeClock(time.Millisecond).Now,
	}
	m, err := s.Execute(context.Background(), requests(3))
	require.NoError(t, err)
	assert.Equal(t, 450, m.TotalTokens)
	assert.Equal(t, 3, m.NumRequests)
	assert.True(t, m.Final)
	assert.Nil(t, m.TTFT)
	assert.Positive(t, m.Throughput)
}

func TestSequential_SubmissionOrder(t *testing.T) {
	t.Parallel()
	var got []int
	s := &bench.Sequential{
		Provider: fixedProvider(bench.Usage{InputTokens: 1, OutputTokens: 1}),
		OnCall:   func(r bench.CallResult) { got = append(got, r.Index) },
	}
	_, err := s.Execute(context.Background(), requests(5))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestSequential_RecordTTFT(t *testing.T) {
	t.Parallel()
	s := &bench.Sequential{
		Provider:   fixedProvider(bench.Usage{InputTokens: 1, OutputTokens: 1}),
		Clock:      newFakeClock(time.Millisecond).Now,
		RecordTTFT: true,
	}
	m, err := s.Execute(context.Background(), requests(3))
	require.NoError(t, err)
	require.NotNil(t, m.TTFT)
	assert.Equal(t, m.Records[0].WallTime, *m.TTFT)
	assert.LessOrEqual(t, *m.TTFT, m.ExecutionTime)
}

func TestSequential_EstimatesMissingUsage(t *testing.T) {
	t.Parallel()
	s := &bench.Sequential{Provider: fixedProvider(bench.Usage{})}
	m, err := s.Execute(context.Background(), requests(2))
	require.NoError(t, err)
	assert.Equal(t, 2, m.EstimatedCalls)
	assert.True(t, m.Degraded())
	assert.Positive(t, m.TotalTokens)
}

func TestSequential_PropagatesError(t *testing.T) {
	t.Parallel()
	var calls int
	s := &bench.Sequential{Provider: &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			calls++
			if calls == 2 {
				return bench.Response{}, &bench.ProviderError{Provider: "mock", StatusCode: 500, Message: "boom"}
			}
			return bench.Response{Usage: bench.Usage{InputTokens: 1}}, nil
		},
	}}
	m, err := s.Execute(context.Background(), requests(4))
	assert.ErrorIs(t, err, bench.ErrProvider)
	assert.Equal(t, bench.RunMetrics{}, m)
	assert.Equal(t, 2, calls)
}

func TestParallel_MatchesSequentialTotals(t *testing.T) {
	t.Parallel()
	// Usage depends on the request, not on call order.
	p := &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			n := len(req.PromptText())
			return bench.Response{Usage: bench.Usage{InputTokens: n, OutputTokens: n / 2, CacheReadTokens: 3}}, nil
		},
	}
	reqs := requests(12)

	seq, err := (&bench.Sequential{Provider: p}).Execute(context.Background(), reqs)
	require.NoError(t, err)
	par, err := (&bench.Parallel{Provider: p, Concurrency: len(reqs)}).Execute(context.Background(), reqs)
	require.NoError(t, err)

	assert.Equal(t, seq.TotalTokens, par.TotalTokens)
	assert.Equal(t, seq.InputTokens, par.InputTokens)
	assert.Equal(t, seq.OutputTokens, par.OutputTokens)
	assert.Equal(t, seq.CacheReadTokens, par.CacheReadTokens)
	assert.Equal(t, seq.NumRequests, par.NumRequests)
	assert.Equal(t, "parallel", par.Strategy)
}

func TestParallel_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32
	p := &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return bench.Response{Usage: bench.Usage{InputTokens: 1, OutputTokens: 1}}, nil
		},
	}
	m, err := (&bench.Parallel{Provider: p, Concurrency: 3}).Execute(context.Background(), requests(10))
	require.NoError(t, err)
	assert.Equal(t, 20, m.TotalTokens)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestParallel_ExecutionTimeIsWallClockSpan(t *testing.T) {
	t.Parallel()
	const delay = 20 * time.Millisecond
	p := &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			time.Sleep(delay)
			return bench.Response{Usage: bench.Usage{InputTokens: 1}}, nil
		},
	}
	m, err := (&bench.Parallel{Provider: p, Concurrency: 10}).Execute(context.Background(), requests(10))
	require.NoError(t, err)

	var sum time.Duration
	for _, r := range m.Records {
		sum += r.WallTime
	}
	assert.Less(t, m.ExecutionTime, sum)
}

func TestParallel_OnCallNotConcurrent(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		busy  bool
		calls int
	)
	s := &bench.Parallel{
		Provider:    fixedProvider(bench.Usage{InputTokens: 1}),
		Concurrency: 8,
		OnCall: func(bench.CallResult) {
			mu.Lock()
			assert.False(t, busy)
			busy = true
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			busy = false
			calls++
			mu.Unlock()
		},
	}
	_, err := s.Execute(context.Background(), requests(16))
	require.NoError(t, err)
	assert.Equal(t, 16, calls)
}

func TestParallel_FailureAbortsRun(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("connection reset")
	p := &mock.Provider{
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			if req.Messages[0].Text() == "question 3" {
				return bench.Response{}, wantErr
			}
			return bench.Response{Usage: bench.Usage{InputTokens: 1}}, nil
		},
	}
	m, err := (&bench.Parallel{Provider: p, Concurrency: 2}).Execute(context.Background(), requests(8))
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, bench.RunMetrics{}, m)
}

func TestParallel_EmptyBatch(t *testing.T) {
	t.Parallel()
	m, err := (&bench.Parallel{Provider: &mock.Provider{}}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, m.NumRequests)
	assert.Nil(t, m.TTFT)
}

func streamingProvider(usage bench.Usage, stopUsage bool) *mock.Provider {
	return &mock.Provider{
		StreamFn: func(ctx context.Context, req bench.Request) (bench.Stream, error) {
			events := []bench.Event{
				bench.EventOutputStart{},
				bench.EventTextDelta{Delta: "hel"},
				bench.EventTextDelta{Delta: "lo"},
			}
			if stopUsage {
				events = append(events, bench.EventStop{StopReason: bench.StopEndTurn, Usage: usage})
			}
			return mock.Scripted(bench.Response{Text: "hello", StopReason: bench.StopEndTurn}, events...), nil
		},
		CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
			return bench.Response{Text: "hello", Usage: usage}, nil
		},
	}
}

func TestCachedPrefixStreaming_UsageFromTerminalEvent(t *testing.T) {
	t.Parallel()
	u := bench.Usage{InputTokens: 10, CacheReadTokens: 1000, OutputTokens: 20}
	p := streamingProvider(u, true)
	var tagged int
	s := &bench.CachedPrefixStreaming{
		Streamer: p,
		Clock:    newFakeClock(time.Millisecond).Now,
		OnCall: func(r bench.CallResult) {
			if r.Request.HasCacheAffinity() {
				tagged++
			}
		},
	}
	m, err := s.Execute(context.Background(), requests(3))
	require.NoError(t, err)
	assert.Equal(t, 3*1030, m.TotalTokens)
	assert.Equal(t, 3000, m.CacheReadTokens)
	assert.Zero(t, m.FollowUpCalls)
	assert.Zero(t, m.EstimatedCalls)
	assert.Equal(t, 3, tagged)
}

func TestCachedPrefixStreaming_TTFT(t *testing.T) {
	t.Parallel()
	p := streamingProvider(bench.Usage{InputTokens: 1, OutputTokens: 1}, true)
	s := &bench.CachedPrefixStreaming{Streamer: p, Clock: newFakeClock(time.Millisecond).Now}

	m, err := s.Execute(context.Background(), requests(3))
	require.NoError(t, err)
	require.NotNil(t, m.TTFT)
	assert.Positive(t, *m.TTFT)
	assert.LessOrEqual(t, *m.TTFT, m.Records[0].WallTime)
	assert.LessOrEqual(t, *m.TTFT, m.ExecutionTime)
}

func TestCachedPrefixStreaming_TTFTUnsetForEmptyBatch(t *testing.T) {
	t.Parallel()
	s := &bench.CachedPrefixStreaming{Streamer: &mock.Provider{}}
	m, err := s.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, m.TTFT)
	assert.Zero(t, m.NumRequests)
}

func TestCachedPrefixStreaming_MissingUsage(t *testing.T) {
	t.Parallel()
	u := bench.Usage{InputTokens: 40, OutputTokens: 2}

	t.Run("estimates without follow-up", func(t *testing.T) {
		t.Parallel()
		s := &bench.CachedPrefixStreaming{Streamer: streamingProvider(u, false)}
		m, err := s.Execute(context.Background(), requests(2))
		require.NoError(t, err)
		assert.Equal(t, 2, m.EstimatedCalls)
		assert.Zero(t, m.FollowUpCalls)
	})

	t.Run("follow-up call fetches usage", func(t *testing.T) {
		t.Parallel()
		p := streamingProvider(u, false)
		s := &bench.CachedPrefixStreaming{Streamer: p, Provider: p, FollowUpUsage: true}
		m, err := s.Execute(context.Background(), requests(2))
		require.NoError(t, err)
		assert.Equal(t, 2, m.FollowUpCalls)
		assert.Zero(t, m.EstimatedCalls)
		assert.Equal(t, 84, m.TotalTokens)
	})

	t.Run("follow-up requires provider", func(t *testing.T) {
		t.Parallel()
		s := &bench.CachedPrefixStreaming{Streamer: streamingProvider(u, false), FollowUpUsage: true}
		_, err := s.Execute(context.Background(), requests(1))
		assert.ErrorIs(t, err, bench.ErrConfig)
	})
}

func TestCachedPrefixStreaming_StreamError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("reset")
	closed := false
	p := &mock.Provider{
		StreamFn: func(ctx context.Context, req bench.Request) (bench.Stream, error) {
			return &mock.Stream{
				NextFn:  func() (bench.Event, error) { return nil, wantErr },
				CloseFn: func() error { closed = true; return nil },
			}, nil
		},
	}
	_, err := (&bench.CachedPrefixStreaming{Streamer: p}).Execute(context.Background(), requests(1))
	assert.ErrorIs(t, err, wantErr)
	assert.True(t, closed)
}

func TestStrategies_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := fixedProvider(bench.Usage{InputTokens: 1})

	_, err := (&bench.Sequential{Provider: p}).Execute(ctx, requests(2))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = (&bench.Parallel{Provider: p}).Execute(ctx, requests(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNamed(t *testing.T) {
	t.Parallel()
	s := bench.Named("full-history", &bench.Sequential{
		Provider: fixedProvider(bench.Usage{InputTokens: 10, OutputTokens: 5}),
	})
	assert.Equal(t, "full-history", s.Name())

	m, err := s.Execute(context.Background(), requests(2))
	require.NoError(t, err)
	assert.Equal(t, "full-history", m.Strategy)
	assert.Equal(t, 30, m.TotalTokens)
}

func TestNamed_PropagatesError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := bench.Named("memory-retrieval", &bench.Sequential{
		Provider: &mock.Provider{
			CompleteFn: func(ctx context.Context, req bench.Request) (bench.Response, error) {
				return bench.Response{}, boom
			},
		},
	})
	m, err := s.Execute(context.Background(), requests(1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, bench.RunMetrics{}, m)
}
