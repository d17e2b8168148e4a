package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Harness runs strategies and prices their results.
type Harness struct {
	Estimator CostEstimator

	// CacheHitRatio fixes the ratio used for pricing. Nil uses the ratio
	// measured from cache read tokens.
	CacheHitRatio *float64

	Logger *slog.Logger
}

// NewHarness returns a Harness pricing runs with prices.
func NewHarness(prices PriceTable, logger *slog.Logger) *Harness {
	return &Harness{Estimator: NewCostEstimator(prices), Logger: logger}
}

// Run executes s over reqs and attaches the estimated cost to the
// finalized metrics.
func (h *Harness) Run(ctx context.Context, s Strategy, reqs []Request) (RunMetrics, error) {
	log := h.logger().With("strategy", s.Name())
	log.Info("run started", "requests", len(reqs))

	m, err := s.Execute(ctx, reqs)
	if err != nil {
		log.Error("run failed", "error", err)
		return RunMetrics{}, fmt.Errorf("%s: %w", s.Name(), err)
	}
	m.EstimatedCost = h.Estimator.EstimateRun(m, h.CacheHitRatio)

	log.Info("run finished",
		"requests", m.NumRequests,
		"total_tokens", m.TotalTokens,
		"elapsed", m.ExecutionTime,
		"throughput", m.Throughput,
		"cost_usd", m.EstimatedCost,
	)
	if m.Degraded() {
		log.Warn("usage estimated from text length", "calls", m.EstimatedCalls)
	}
	if m.FollowUpCalls > 0 {
		log.Warn("follow-up usage calls are billed twice", "calls", m.FollowUpCalls)
	}
	return m, nil
}

// LogCall logs a completed call at debug level. It fits the OnCall hook of
// the strategies.
func (h *Harness) LogCall(res CallResult) {
	u := res.Response.Usage
	h.logger().Debug("call completed",
		"index", res.Index,
		"wall_time", res.WallTime,
		"input_tokens", u.InputTokens,
		"output_tokens", u.OutputTokens,
		"cache_read_tokens", u.CacheReadTokens,
		"cache_write_tokens", u.CacheWriteTokens,
		"estimated", u.Estimated,
	)
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}
