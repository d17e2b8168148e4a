package bench

import "time"

// Comparison relates a candidate run to a baseline run. Ratios whose
// denominator is zero are left at zero and their Has flag is false.
type Comparison struct {
	Baseline  string
	Candidate string

	// Speedup is baseline time over candidate time.
	Speedup            float64
	TimeSaved          time.Duration
	TimeImprovementPct float64
	HasSpeedup         bool

	ThroughputImprovementPct float64
	HasThroughput            bool

	CostReductionPct float64
	HasCost          bool

	// TTFTImprovementPct compares first-output latency when both runs
	// measured it.
	TTFTImprovementPct float64
	HasTTFT            bool

	SameTotalTokens bool
}

// Compare computes the improvement of candidate over baseline.
func Compare(baseline, candidate RunMetrics) Comparison {
	c := Comparison{
		Baseline:        baseline.Strategy,
		Candidate:       candidate.Strategy,
		TimeSaved:       baseline.ExecutionTime - candidate.ExecutionTime,
		SameTotalTokens: baseline.TotalTokens == candidate.TotalTokens,
	}
	if candidate.ExecutionTime > 0 {
		c.Speedup = float64(baseline.ExecutionTime) / float64(candidate.ExecutionTime)
		c.TimeImprovementPct = (c.Speedup - 1) * 100
		c.HasSpeedup = true
	}
	if baseline.Throughput > 0 {
		c.ThroughputImprovementPct = (candidate.Throughput - baseline.Throughput) / baseline.Throughput * 100
		c.HasThroughput = true
	}
	if baseline.EstimatedCost > 0 && candidate.EstimatedCost >= 0 {
		c.CostReductionPct = (baseline.EstimatedCost - candidate.EstimatedCost) / baseline.EstimatedCost * 100
		c.HasCost = true
	}
	if baseline.TTFT != nil && candidate.TTFT != nil && *baseline.TTFT > 0 {
		c.TTFTImprovementPct = float64(*baseline.TTFT-*candidate.TTFT) / float64(*baseline.TTFT) * 100
		c.HasTTFT = true
	}
	return c
}

// CompareAll compares every run after the first against the first.
func CompareAll(runs []RunMetrics) []Comparison {
	if len(runs) < 2 {
		return nil
	}
	out := make([]Comparison, 0, len(runs)-1)
	for _, r := range runs[1:] {
		out = append(out, Compare(runs[0], r))
	}
	return out
}
