package bench

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight calls of a Parallel strategy when
// none is configured.
const DefaultConcurrency = 10

// Strategy turns a batch of requests into provider calls and aggregates
// their usage. Any failed call aborts the run; no partial metrics are
// returned.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, reqs []Request) (RunMetrics, error)
}

// Named runs s under another name. Scenarios that run one strategy over
// differently built requests use it to tell their runs apart.
func Named(name string, s Strategy) Strategy {
	return named{name: name, Strategy: s}
}

type named struct {
	name string
	Strategy
}

func (n named) Name() string { return n.name }

func (n named) Execute(ctx context.Context, reqs []Request) (RunMetrics, error) {
	m, err := n.Strategy.Execute(ctx, reqs)
	if err != nil {
		return RunMetrics{}, err
	}
	m.Strategy = n.name
	return m, nil
}

// CallResult is one completed provider call as seen by a strategy.
type CallResult struct {
	Index    int
	Request  Request
	Response Response
	Started  time.Time
	WallTime time.Duration
}

func (r CallResult) record() UsageRecord {
	return UsageRecord{
		Index:    r.Index,
		Usage:    r.Response.Usage,
		Started:  r.Started,
		WallTime: r.WallTime,
	}
}

// complete issues one non-streaming call and normalizes missing usage into
// a flagged estimate.
func complete(ctx context.Context, p Provider, now Clock, index int, req Request) (CallResult, error) {
	started := now()
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return CallResult{}, fmt.Errorf("request %d: %w", index, err)
	}
	resp.Usage = resolveUsage(req, resp)
	return CallResult{
		Index:    index,
		Request:  req,
		Response: resp,
		Started:  started,
		WallTime: now().Sub(started),
	}, nil
}

func resolveUsage(req Request, resp Response) Usage {
	if resp.Usage.IsZero() && !resp.Usage.Estimated {
		return EstimateUsage(req, resp.Text)
	}
	return resp.Usage
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Sequential issues requests one at a time in submission order.
type Sequential struct {
	Provider Provider
	Clock    Clock

	// RecordTTFT records the full latency of the first call as TTFT. For a
	// non-streaming call the whole response is the first observable output.
	RecordTTFT bool

	// OnCall, if set, observes every completed call in submission order.
	OnCall func(CallResult)
}

func (s *Sequential) Name() string { return "sequential" }

func (s *Sequential) Execute(ctx context.Context, reqs []Request) (RunMetrics, error) {
	now := clockOrDefault(s.Clock)
	acc := NewAccumulator(s.Name(), now)
	acc.Start()
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return RunMetrics{}, err
		}
		res, err := complete(ctx, s.Provider, now, i, req)
		if err != nil {
			return RunMetrics{}, err
		}
		if i == 0 && s.RecordTTFT {
			acc.RecordTTFT(res.WallTime)
		}
		if err := acc.Record(res.record()); err != nil {
			return RunMetrics{}, err
		}
		if s.OnCall != nil {
			s.OnCall(res)
		}
	}
	return acc.Finalize(), nil
}

// Parallel dispatches up to Concurrency calls at once. Completed calls are
// funneled to a single aggregating goroutine, so completion order never
// affects the totals.
type Parallel struct {
	Provider    Provider
	Concurrency int // 0 = DefaultConcurrency
	Clock       Clock

	// OnCall, if set, observes completed calls in completion order. It is
	// never invoked concurrently.
	OnCall func(CallResult)
}

func (p *Parallel) Name() string { return "parallel" }

func (p *Parallel) Execute(ctx context.Context, reqs []Request) (RunMetrics, error) {
	now := clockOrDefault(p.Clock)
	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	acc := NewAccumulator(p.Name(), now)

	results := make(chan CallResult)
	done := make(chan struct{})
	var recordErr error
	go func() {
		defer close(done)
		for res := range results {
			if err := acc.Record(res.record()); err != nil {
				if recordErr == nil {
					recordErr = err
				}
				continue
			}
			if p.OnCall != nil {
				p.OnCall(res)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	acc.Start()
	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := complete(gctx, p.Provider, now, i, req)
			if err != nil {
				return err
			}
			select {
			case results <- res:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(results)
	<-done
	if err != nil {
		return RunMetrics{}, err
	}
	if recordErr != nil {
		return RunMetrics{}, recordErr
	}
	return acc.Finalize(), nil
}

// CachedPrefixStreaming tags the last system block of every request as a
// cacheable prefix and streams the requests one at a time. TTFT is taken
// from the first output event of the first request only.
//
// Usage is read from each stream's terminal event. When the provider
// reports none, a non-streaming follow-up call fetches it if FollowUpUsage
// is set; those calls are counted in RunMetrics.FollowUpCalls because they
// are billed a second time. Otherwise usage is estimated from text.
type CachedPrefixStreaming struct {
	Streamer Streamer
	Clock    Clock

	// Provider serves follow-up usage calls.
	Provider      Provider
	FollowUpUsage bool

	// OnEvent, if set, receives every stream event with its request index.
	OnEvent func(index int, e Event)

	// OnCall, if set, observes every completed call in submission order.
	OnCall func(CallResult)
}

func (s *CachedPrefixStreaming) Name() string { return "cached_prefix_streaming" }

func (s *CachedPrefixStreaming) Execute(ctx context.Context, reqs []Request) (RunMetrics, error) {
	if s.FollowUpUsage && s.Provider == nil {
		return RunMetrics{}, fmt.Errorf("follow-up usage requires a provider: %w", ErrConfig)
	}
	now := clockOrDefault(s.Clock)
	acc := NewAccumulator(s.Name(), now)
	acc.Start()
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return RunMetrics{}, err
		}
		req = WithCachePrefix(req)
		res, firstOutput, err := s.stream(ctx, now, i, req)
		if err != nil {
			return RunMetrics{}, err
		}
		if i == 0 && !firstOutput.IsZero() {
			acc.RecordTTFT(firstOutput.Sub(res.Started))
		}
		if res.Response.Usage.Estimated && s.FollowUpUsage {
			resp, err := s.Provider.Complete(ctx, req)
			if err != nil {
				return RunMetrics{}, fmt.Errorf("request %d usage: %w", i, err)
			}
			acc.RecordFollowUp()
			res.Response.Usage = resolveUsage(req, resp)
		}
		if err := acc.Record(res.record()); err != nil {
			return RunMetrics{}, err
		}
		if s.OnCall != nil {
			s.OnCall(res)
		}
	}
	return acc.Finalize(), nil
}

func (s *CachedPrefixStreaming) stream(ctx context.Context, now Clock, index int, req Request) (CallResult, time.Time, error) {
	started := now()
	stream, err := s.Streamer.Stream(ctx, req)
	if err != nil {
		return CallResult{}, time.Time{}, fmt.Errorf("request %d: %w", index, err)
	}
	var onEvent func(Event)
	if s.OnEvent != nil {
		onEvent = func(e Event) { s.OnEvent(index, e) }
	}
	d, err := Drain(stream, now, onEvent)
	closeErr := stream.Close()
	if err != nil {
		return CallResult{}, time.Time{}, fmt.Errorf("request %d: %w", index, err)
	}
	if closeErr != nil {
		return CallResult{}, time.Time{}, fmt.Errorf("request %d: close stream: %w", index, closeErr)
	}
	resp := d.Response
	if d.Stop == nil {
		resp.Usage = Usage{}
	}
	resp.Usage = resolveUsage(req, resp)
	return CallResult{
		Index:    index,
		Request:  req,
		Response: resp,
		Started:  started,
		WallTime: now().Sub(started),
	}, d.FirstOutput, nil
}

// Interface compliance checks.
var (
	_ Strategy = (*Sequential)(nil)
	_ Strategy = (*Parallel)(nil)
	_ Strategy = (*CachedPrefixStreaming)(nil)
)
