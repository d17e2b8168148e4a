package bench

import (
	"sort"
	"sync"
	"time"
)

// Accumulator aggregates UsageRecords into RunMetrics. Record is safe for
// concurrent use by multiple workers.
type Accumulator struct {
	name string
	now  Clock

	mu        sync.Mutex
	started   time.Time
	finished  time.Time
	records   []UsageRecord
	ttft      *time.Duration
	followUps int
	final     bool
}

// NewAccumulator returns an Accumulator for the named strategy. A nil clock
// uses time.Now.
func NewAccumulator(name string, now Clock) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{name: name, now: now}
}

// Start marks the dispatch of the first call. Calling it again has no
// effect.
func (a *Accumulator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started.IsZero() {
		a.started = a.now()
	}
}

// Record appends a completed call.
func (a *Accumulator) Record(r UsageRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final {
		return ErrRunFinalized
	}
	a.records = append(a.records, r)
	return nil
}

// RecordTTFT stores the time to first token. Only the first value is kept;
// it reports whether d was stored.
func (a *Accumulator) RecordTTFT(d time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final || a.ttft != nil {
		return false
	}
	a.ttft = &d
	return true
}

// RecordFollowUp counts an extra call made only to obtain usage.
func (a *Accumulator) RecordFollowUp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.followUps++
}

// Snapshot returns the current totals without stopping accumulation.
// Throughput is left at zero until Finalize.
func (a *Accumulator) Snapshot() RunMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final {
		return a.metrics(a.finished)
	}
	return a.metrics(a.now())
}

// Finalize freezes the run and computes throughput. Later calls return the
// same metrics.
func (a *Accumulator) Finalize() RunMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.final {
		a.finished = a.now()
		if a.started.IsZero() {
			a.started = a.finished
		}
		a.final = true
	}
	m := a.metrics(a.finished)
	if secs := m.ExecutionTime.Seconds(); secs > 0 {
		m.Throughput = float64(m.TotalTokens) / secs
	}
	return m
}

// metrics must be called with a.mu held.
func (a *Accumulator) metrics(until time.Time) RunMetrics {
	m := RunMetrics{
		Strategy:      a.name,
		NumRequests:   len(a.records),
		FollowUpCalls: a.followUps,
		Final:         a.final,
		Records:       make([]UsageRecord, len(a.records)),
	}
	copy(m.Records, a.records)
	sort.Slice(m.Records, func(i, j int) bool { return m.Records[i].Index < m.Records[j].Index })

	for _, r := range a.records {
		u := r.Usage
		m.InputTokens += u.InputTokens
		m.OutputTokens += u.OutputTokens
		m.CacheReadTokens += u.CacheReadTokens
		m.CacheWriteTokens += u.CacheWriteTokens
		m.TotalTokens += u.Processed()
		if u.Estimated {
			m.EstimatedCalls++
		}
	}
	if in := m.InputTokens + m.CacheReadTokens + m.CacheWriteTokens; in > 0 {
		m.CacheHitRatio = float64(m.CacheReadTokens) / float64(in)
	}
	if a.ttft != nil {
		d := *a.ttft
		m.TTFT = &d
	}
	if !a.started.IsZero() && until.After(a.started) {
		m.ExecutionTime = until.Sub(a.started)
	}
	return m
}
