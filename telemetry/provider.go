package telemetry

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fwojciec/bench"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Interface compliance checks.
var (
	_ bench.Provider = (*Provider)(nil)
	_ bench.Streamer = (*Provider)(nil)
	_ bench.Stream   = (*stream)(nil)
)

// ErrStreamingUnsupported is returned by Stream when the wrapped provider
// does not implement bench.Streamer.
var ErrStreamingUnsupported = errors.New("provider does not support streaming")

// Provider decorates a provider with a span per call, a token counter and
// a call duration histogram.
type Provider struct {
	next     bench.Provider
	name     string
	tracer   trace.Tracer
	tokens   metric.Int64Counter
	duration metric.Float64Histogram
	ttft     metric.Float64Histogram
	now      bench.Clock
}

type options struct {
	tp    trace.TracerProvider
	mp    metric.MeterProvider
	clock bench.Clock
}

// Option configures Instrument.
type Option func(*options)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithClock sets the clock used to time calls.
func WithClock(c bench.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Instrument wraps next, labelling telemetry with the provider name.
func Instrument(next bench.Provider, name string, opts ...Option) (*Provider, error) {
	o := options{
		tp:    otel.GetTracerProvider(),
		mp:    otel.GetMeterProvider(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.mp.Meter(instrumentationName)

	tokens, err := meter.Int64Counter("bench.tokens",
		metric.WithDescription("Tokens consumed by provider calls, by category."),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("bench.call.duration",
		metric.WithDescription("Wall time of provider calls."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	ttft, err := meter.Float64Histogram("bench.stream.ttft",
		metric.WithDescription("Time from stream request to first output event."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		next:     next,
		name:     name,
		tracer:   o.tp.Tracer(instrumentationName),
		tokens:   tokens,
		duration: duration,
		ttft:     ttft,
		now:      o.clock,
	}, nil
}

// Complete records a "bench.complete" span around the wrapped call.
func (p *Provider) Complete(ctx context.Context, req bench.Request) (bench.Response, error) {
	ctx, span := p.start(ctx, "bench.complete", req)
	defer span.End()

	started := p.now()
	resp, err := p.next.Complete(ctx, req)
	p.recordDuration(ctx, started, "complete", err)
	if err != nil {
		fail(span, err)
		return resp, err
	}
	p.recordUsage(ctx, span, resp.Usage)
	return resp, nil
}

// Stream records a "bench.stream" span that ends when the stream reaches a
// terminal state or is closed.
func (p *Provider) Stream(ctx context.Context, req bench.Request) (bench.Stream, error) {
	streamer, ok := p.next.(bench.Streamer)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	ctx, span := p.start(ctx, "bench.stream", req)
	started := p.now()
	s, err := streamer.Stream(ctx, req)
	if err != nil {
		p.recordDuration(ctx, started, "stream", err)
		fail(span, err)
		span.End()
		return nil, err
	}
	return &stream{Stream: s, p: p, ctx: ctx, span: span, started: started}, nil
}

func (p *Provider) start(ctx context.Context, name string, req bench.Request) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("bench.provider", p.name),
			attribute.String("bench.model", req.Model),
			attribute.Int("bench.messages", len(req.Messages)),
			attribute.Bool("bench.cache_affinity", req.HasCacheAffinity()),
		),
	)
}

func (p *Provider) recordUsage(ctx context.Context, span trace.Span, u bench.Usage) {
	span.SetAttributes(
		attribute.Int("bench.usage.input_tokens", u.InputTokens),
		attribute.Int("bench.usage.output_tokens", u.OutputTokens),
		attribute.Int("bench.usage.cache_read_tokens", u.CacheReadTokens),
		attribute.Int("bench.usage.cache_write_tokens", u.CacheWriteTokens),
		attribute.Bool("bench.usage.estimated", u.Estimated),
	)
	for _, c := range []struct {
		kind string
		n    int
	}{
		{"input", u.InputTokens},
		{"output", u.OutputTokens},
		{"cache_read", u.CacheReadTokens},
		{"cache_write", u.CacheWriteTokens},
	} {
		if c.n == 0 {
			continue
		}
		p.tokens.Add(ctx, int64(c.n), metric.WithAttributes(
			attribute.String("bench.provider", p.name),
			attribute.String("bench.token_type", c.kind),
			attribute.Bool("bench.usage.estimated", u.Estimated),
		))
	}
}

func (p *Provider) recordDuration(ctx context.Context, started time.Time, op string, err error) {
	p.duration.Record(ctx, p.now().Sub(started).Seconds(), metric.WithAttributes(
		attribute.String("bench.provider", p.name),
		attribute.String("bench.operation", op),
		attribute.Bool("error", err != nil),
	))
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// stream ends its span exactly once, on io.EOF, on an error or on Close.
type stream struct {
	bench.Stream
	p         *Provider
	ctx       context.Context
	span      trace.Span
	started   time.Time
	sawOutput bool
	ended     bool
}

func (s *stream) Next() (bench.Event, error) {
	evt, err := s.Stream.Next()
	switch {
	case err == io.EOF:
		s.end(nil)
	case err != nil:
		s.end(err)
	default:
		if !s.sawOutput && bench.IsOutput(evt) {
			s.sawOutput = true
			elapsed := s.p.now().Sub(s.started)
			s.span.AddEvent("first_output")
			s.p.ttft.Record(s.ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("bench.provider", s.p.name),
			))
		}
		if stop, ok := evt.(bench.EventStop); ok {
			s.p.recordUsage(s.ctx, s.span, stop.Usage)
		}
	}
	return evt, err
}

func (s *stream) Close() error {
	err := s.Stream.Close()
	if !s.ended {
		s.span.SetAttributes(attribute.Bool("bench.stream.aborted", true))
		s.end(nil)
	}
	return err
}

func (s *stream) end(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.p.recordDuration(s.ctx, s.started, "stream", err)
	if err != nil {
		fail(s.span, err)
	}
	s.span.End()
}
