package json

import (
	"time"

	"github.com/fwojciec/bench"
)

type runDTO struct {
	ID        string     `json:"id,omitempty"`
	Scenario  string     `json:"scenario,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Metrics   metricsDTO `json:"metrics"`
}

type metricsDTO struct {
	Strategy         string      `json:"strategy"`
	NumRequests      int         `json:"num_requests"`
	InputTokens      int         `json:"input_tokens"`
	OutputTokens     int         `json:"output_tokens"`
	CacheReadTokens  int         `json:"cache_read_tokens"`
	CacheWriteTokens int         `json:"cache_write_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	ExecutionTimeUS  int64       `json:"execution_time_us"`
	Throughput       float64     `json:"throughput_tokens_per_s"`
	EstimatedCost    float64     `json:"estimated_cost_usd"`
	CacheHitRatio    float64     `json:"cache_hit_ratio"`
	TTFTUS           *int64      `json:"ttft_us,omitempty"`
	EstimatedCalls   int         `json:"estimated_calls,omitempty"`
	FollowUpCalls    int         `json:"follow_up_calls,omitempty"`
	Records          []recordDTO `json:"records,omitempty"`
}

type recordDTO struct {
	Index            int       `json:"index"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	CacheReadTokens  int       `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int       `json:"cache_write_tokens,omitempty"`
	Estimated        bool      `json:"estimated,omitempty"`
	Started          time.Time `json:"started"`
	WallTimeUS       int64     `json:"wall_time_us"`
}

type comparisonDTO struct {
	Baseline                 string   `json:"baseline"`
	Candidate                string   `json:"candidate"`
	Speedup                  *float64 `json:"speedup,omitempty"`
	TimeImprovementPct       *float64 `json:"time_improvement_pct,omitempty"`
	TimeSavedUS              int64    `json:"time_saved_us"`
	ThroughputImprovementPct *float64 `json:"throughput_improvement_pct,omitempty"`
	CostReductionPct         *float64 `json:"cost_reduction_pct,omitempty"`
	TTFTImprovementPct       *float64 `json:"ttft_improvement_pct,omitempty"`
	SameTotalTokens          bool     `json:"same_total_tokens"`
}

func marshalRun(r bench.Run) runDTO {
	dto := runDTO{
		ID:       r.ID,
		Scenario: r.Scenario,
		Provider: r.Provider,
		Model:    r.Model,
		Metrics:  marshalMetrics(r.Metrics),
	}
	if !r.CreatedAt.IsZero() {
		created := r.CreatedAt.UTC()
		dto.CreatedAt = &created
	}
	return dto
}

func unmarshalRun(dto runDTO) bench.Run {
	r := bench.Run{
		ID:       dto.ID,
		Scenario: dto.Scenario,
		Provider: dto.Provider,
		Model:    dto.Model,
		Metrics:  unmarshalMetrics(dto.Metrics),
	}
	if dto.CreatedAt != nil {
		r.CreatedAt = *dto.CreatedAt
	}
	return r
}

func marshalMetrics(m bench.RunMetrics) metricsDTO {
	dto := metricsDTO{
		Strategy:         m.Strategy,
		NumRequests:      m.NumRequests,
		InputTokens:      m.InputTokens,
		OutputTokens:     m.OutputTokens,
		CacheReadTokens:  m.CacheReadTokens,
		CacheWriteTokens: m.CacheWriteTokens,
		TotalTokens:      m.TotalTokens,
		ExecutionTimeUS:  micros(m.ExecutionTime),
		Throughput:       m.Throughput,
		EstimatedCost:    m.EstimatedCost,
		CacheHitRatio:    m.CacheHitRatio,
		EstimatedCalls:   m.EstimatedCalls,
		FollowUpCalls:    m.FollowUpCalls,
	}
	if m.TTFT != nil {
		us := micros(*m.TTFT)
		dto.TTFTUS = &us
	}
	for _, r := range m.Records {
		dto.Records = append(dto.Records, marshalRecord(r))
	}
	return dto
}

// unmarshalMetrics restores a finalized RunMetrics; only finalized runs
// are ever exported.
func unmarshalMetrics(dto metricsDTO) bench.RunMetrics {
	m := bench.RunMetrics{
		Strategy:         dto.Strategy,
		NumRequests:      dto.NumRequests,
		InputTokens:      dto.InputTokens,
		OutputTokens:     dto.OutputTokens,
		CacheReadTokens:  dto.CacheReadTokens,
		CacheWriteTokens: dto.CacheWriteTokens,
		TotalTokens:      dto.TotalTokens,
		ExecutionTime:    duration(dto.ExecutionTimeUS),
		Throughput:       dto.Throughput,
		EstimatedCost:    dto.EstimatedCost,
		CacheHitRatio:    dto.CacheHitRatio,
		EstimatedCalls:   dto.EstimatedCalls,
		FollowUpCalls:    dto.FollowUpCalls,
		Final:            true,
	}
	if dto.TTFTUS != nil {
		d := duration(*dto.TTFTUS)
		m.TTFT = &d
	}
	for _, r := range dto.Records {
		m.Records = append(m.Records, unmarshalRecord(r))
	}
	return m
}

func marshalRecord(r bench.UsageRecord) recordDTO {
	return recordDTO{
		Index:            r.Index,
		InputTokens:      r.Usage.InputTokens,
		OutputTokens:     r.Usage.OutputTokens,
		CacheReadTokens:  r.Usage.CacheReadTokens,
		CacheWriteTokens: r.Usage.CacheWriteTokens,
		Estimated:        r.Usage.Estimated,
		Started:          r.Started.UTC(),
		WallTimeUS:       micros(r.WallTime),
	}
}

func unmarshalRecord(dto recordDTO) bench.UsageRecord {
	return bench.UsageRecord{
		Index: dto.Index,
		Usage: bench.Usage{
			InputTokens:      dto.InputTokens,
			OutputTokens:     dto.OutputTokens,
			CacheReadTokens:  dto.CacheReadTokens,
			CacheWriteTokens: dto.CacheWriteTokens,
			Estimated:        dto.Estimated,
		},
		Started:  dto.Started,
		WallTime: duration(dto.WallTimeUS),
	}
}

func marshalComparison(c bench.Comparison) comparisonDTO {
	dto := comparisonDTO{
		Baseline:        c.Baseline,
		Candidate:       c.Candidate,
		TimeSavedUS:     micros(c.TimeSaved),
		SameTotalTokens: c.SameTotalTokens,
	}
	if c.HasSpeedup {
		dto.Speedup = ptr(c.Speedup)
		dto.TimeImprovementPct = ptr(c.TimeImprovementPct)
	}
	if c.HasThroughput {
		dto.ThroughputImprovementPct = ptr(c.ThroughputImprovementPct)
	}
	if c.HasCost {
		dto.CostReductionPct = ptr(c.CostReductionPct)
	}
	if c.HasTTFT {
		dto.TTFTImprovementPct = ptr(c.TTFTImprovementPct)
	}
	return dto
}

func unmarshalComparison(dto comparisonDTO) bench.Comparison {
	c := bench.Comparison{
		Baseline:        dto.Baseline,
		Candidate:       dto.Candidate,
		TimeSaved:       duration(dto.TimeSavedUS),
		SameTotalTokens: dto.SameTotalTokens,
	}
	if dto.Speedup != nil {
		c.Speedup, c.HasSpeedup = *dto.Speedup, true
	}
	if dto.TimeImprovementPct != nil {
		c.TimeImprovementPct = *dto.TimeImprovementPct
	}
	if dto.ThroughputImprovementPct != nil {
		c.ThroughputImprovementPct, c.HasThroughput = *dto.ThroughputImprovementPct, true
	}
	if dto.CostReductionPct != nil {
		c.CostReductionPct, c.HasCost = *dto.CostReductionPct, true
	}
	if dto.TTFTImprovementPct != nil {
		c.TTFTImprovementPct, c.HasTTFT = *dto.TTFTImprovementPct, true
	}
	return c
}

func ptr[T any](v T) *T {
	return &v
}
