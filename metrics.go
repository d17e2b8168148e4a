package bench

import "time"

// RunMetrics aggregates the usage of one benchmark run.
//
// TotalTokens is the sum of input + cache read + output over all recorded
// calls. ExecutionTime is the wall-clock span from the first dispatch to
// the last completion, not the sum of per-call latencies. Throughput is
// only set once Final is true.
type RunMetrics struct {
	Strategy         string
	NumRequests      int
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	TotalTokens      int
	ExecutionTime    time.Duration
	Throughput       float64 // tokens per second
	EstimatedCost    float64 // USD; set by the Harness
	CacheHitRatio    float64 // cache read / total input
	TTFT             *time.Duration
	EstimatedCalls   int // calls whose usage was derived from text length
	FollowUpCalls    int // extra non-streaming calls made only to fetch usage
	Records          []UsageRecord
	Final            bool
}

// Degraded reports whether any call's usage is an estimate rather than a
// provider measurement.
func (m RunMetrics) Degraded() bool {
	return m.EstimatedCalls > 0
}

// AvgLatency returns the mean per-call wall time.
func (m RunMetrics) AvgLatency() time.Duration {
	if len(m.Records) == 0 {
		return 0
	}
	var sum time.Duration
	for _, r := range m.Records {
		sum += r.WallTime
	}
	return sum / time.Duration(len(m.Records))
}
