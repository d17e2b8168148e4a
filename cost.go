package bench

import "math"

// PriceTable holds USD prices per one million tokens. It is constant for a
// run.
type PriceTable struct {
	InputCacheHit  float64
	InputCacheMiss float64
	Output         float64
}

// DefaultPriceTable is DeepSeek chat pricing, the reference for the
// memory scenario.
var DefaultPriceTable = PriceTable{
	InputCacheHit:  0.028,
	InputCacheMiss: 0.28,
	Output:         0.42,
}

const tokensPerPriceUnit = 1_000_000

// CostEstimator converts token counts into a monetary estimate.
type CostEstimator struct {
	Prices PriceTable
}

// NewCostEstimator returns a CostEstimator for prices.
func NewCostEstimator(prices PriceTable) CostEstimator {
	return CostEstimator{Prices: prices}
}

// SplitCacheTokens divides tokensIn into cache hits and misses. The ratio
// is clamped to [0, 1] and hits are rounded down, so hit+miss == tokensIn.
func SplitCacheTokens(tokensIn int, cacheHitRatio float64) (hit, miss int) {
	ratio := clampRatio(cacheHitRatio)
	hit = int(math.Floor(float64(tokensIn) * ratio))
	if hit > tokensIn {
		hit = tokensIn
	}
	return hit, tokensIn - hit
}

// Estimate returns the USD cost of tokensIn input and tokensOut output
// tokens when cacheHitRatio of the input is served from cache.
func (e CostEstimator) Estimate(tokensIn, tokensOut int, cacheHitRatio float64) float64 {
	hit, miss := SplitCacheTokens(tokensIn, cacheHitRatio)
	return e.price(hit, miss, tokensOut)
}

// EstimateRun prices finalized metrics. A nil ratio prices the measured
// cache reads as hits and all other input as misses.
func (e CostEstimator) EstimateRun(m RunMetrics, cacheHitRatio *float64) float64 {
	in := m.InputTokens + m.CacheReadTokens + m.CacheWriteTokens
	if cacheHitRatio != nil {
		return e.Estimate(in, m.OutputTokens, *cacheHitRatio)
	}
	hit := min(max(0, m.CacheReadTokens), in)
	return e.price(hit, in-hit, m.OutputTokens)
}

func (e CostEstimator) price(hit, miss, out int) float64 {
	input := (float64(hit)*e.Prices.InputCacheHit + float64(miss)*e.Prices.InputCacheMiss) / tokensPerPriceUnit
	output := float64(out) * e.Prices.Output / tokensPerPriceUnit
	return input + output
}

func clampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}
