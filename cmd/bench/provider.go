package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/anthropic"
	"github.com/fwojciec/bench/config"
	"github.com/fwojciec/bench/gemini"
	"github.com/fwojciec/bench/mem0"
	"github.com/fwojciec/bench/openai"
	"github.com/fwojciec/bench/telemetry"
)

// buildProvider constructs the named provider from config, failing before
// any network call when its key is missing. The result is instrumented
// with the global OpenTelemetry providers.
func (a *app) buildProvider(ctx context.Context, name string) (bench.Provider, error) {
	if err := a.cfg.RequireKey(name); err != nil {
		return nil, err
	}
	pc, err := a.cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	hc := a.otel.HTTPClient(nil)

	var p bench.Provider
	switch name {
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithHTTPClient(hc)}
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, anthropic.WithModel(pc.Model))
		}
		p = anthropic.New(pc.APIKey, opts...)
	case config.ProviderDeepSeek, config.ProviderOpenAI:
		opts := []openai.Option{openai.WithName(name), openai.WithHTTPClient(hc)}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, openai.WithModel(pc.Model))
		}
		p = openai.New(pc.APIKey, opts...)
	case config.ProviderGemini:
		opts := []gemini.Option{gemini.WithHTTPClient(hc)}
		if pc.Model != "" {
			opts = append(opts, gemini.WithModel(pc.Model))
		}
		client, err := gemini.New(ctx, pc.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		p = client
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", name, bench.ErrConfig)
	}
	return telemetry.Instrument(p, name)
}

func (a *app) buildMemory() (bench.MemorySearcher, error) {
	if err := a.cfg.RequireKey(config.ProviderMem0); err != nil {
		return nil, err
	}
	opts := []mem0.Option{mem0.WithHTTPClient(a.otel.HTTPClient(nil))}
	if a.cfg.Memory.BaseURL != "" {
		opts = append(opts, mem0.WithBaseURL(a.cfg.Memory.BaseURL))
	}
	return mem0.New(a.cfg.Memory.APIKey, opts...), nil
}

// modelFor returns the configured model of the named provider.
func (a *app) modelFor(name string) string {
	pc, err := a.cfg.Provider(name)
	if err != nil {
		return ""
	}
	return pc.Model
}
