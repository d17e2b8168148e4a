// Package mock provides test doubles for bench interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/bench"
)

// Interface compliance checks.
var (
	_ bench.Provider = (*Provider)(nil)
	_ bench.Streamer = (*Provider)(nil)
)

// Provider is a test double for bench.Provider and bench.Streamer.
// Set CompleteFn or StreamFn before calling the matching method.
type Provider struct {
	CompleteFn func(ctx context.Context, req bench.Request) (bench.Response, error)
	StreamFn   func(ctx context.Context, req bench.Request) (bench.Stream, error)
}

// Complete delegates to CompleteFn.
func (p *Provider) Complete(ctx context.Context, req bench.Request) (bench.Response, error) {
	return p.CompleteFn(ctx, req)
}

// Stream delegates to StreamFn.
func (p *Provider) Stream(ctx context.Context, req bench.Request) (bench.Stream, error) {
	return p.StreamFn(ctx, req)
}
