package bench

import "time"

// Usage tracks token consumption for one provider call.
//
// Invariant across all providers:
//
//	InputTokens      = non-cached input tokens
//	CacheReadTokens  = tokens served from cache (cache hit)
//	CacheWriteTokens = tokens written to cache (cache creation)
//
// Total input tokens = InputTokens + CacheReadTokens + CacheWriteTokens.
// Each category has a different cost rate. Providers normalize their
// API-specific fields to this invariant (e.g., OpenAI subtracts
// cached_tokens from prompt_tokens to produce InputTokens).
// Providers must clamp to zero: max(0, derived) when subtracting to
// guard against inconsistent upstream data.
//
// Estimated is set when the provider response carried no usage and the
// counts were derived from text length instead.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	Estimated        bool
}

// Processed returns the tokens counted toward throughput:
// input + cache read + output. Cache writes are excluded because they are
// already part of the billed input of the call that created them.
func (u Usage) Processed() int {
	return u.InputTokens + u.CacheReadTokens + u.OutputTokens
}

// TotalInput returns input tokens across all cache categories.
func (u Usage) TotalInput() int {
	return u.InputTokens + u.CacheReadTokens + u.CacheWriteTokens
}

// IsZero reports whether no tokens were counted.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.CacheReadTokens == 0 && u.CacheWriteTokens == 0
}

// UsageRecord is produced once per completed provider call.
type UsageRecord struct {
	Index    int // position of the request in the submitted batch
	Usage    Usage
	Started  time.Time
	WallTime time.Duration
}
