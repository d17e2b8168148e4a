package main

import (
	"fmt"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/config"
	"github.com/fwojciec/bench/corpus"
	"github.com/spf13/cobra"
)

func newCachingCmd(a *app) *cobra.Command {
	var (
		provider      string
		followUpUsage bool
		contextDir    string
	)
	cmd := &cobra.Command{
		Use:   "caching",
		Short: "Compare uncached, prefix-cached and streamed prefix-cached requests",
		Long: "Sends the same questions about one reference document three ways: " +
			"without cache tags, with the document tagged as a cacheable prefix, " +
			"and streamed with the prefix tagged. Time to first output is taken " +
			"from the first request of each run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.providerFn(ctx, provider)
			if err != nil {
				return err
			}
			streamer, ok := p.(bench.Streamer)
			if !ok {
				return errNoStreaming(provider)
			}
			document, err := a.loadDocument(contextDir)
			if err != nil {
				return err
			}

			model := a.modelFor(provider)
			reqs := corpus.CachingRequests(document, corpus.CachingQuestions, corpus.Settings{
				Model:     model,
				MaxTokens: a.cfg.Benchmark.MaxTokens,
			})
			rep, _, err := a.execute(ctx, scenario{
				name:     "caching",
				provider: provider,
				model:    model,
				steps: []step{
					{
						name: "no-cache",
						reqs: mapRequests(reqs, bench.StripCachePrefix),
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return bench.Named("no-cache", &bench.Sequential{Provider: p, RecordTTFT: true, OnCall: onCall})
						},
					},
					{
						name: "cache-control",
						reqs: mapRequests(reqs, bench.WithCachePrefix),
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return bench.Named("cache-control", &bench.Sequential{Provider: p, RecordTTFT: true, OnCall: onCall})
						},
					},
					{
						name: "streaming",
						reqs: reqs,
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return bench.Named("streaming", &bench.CachedPrefixStreaming{
								Streamer:      streamer,
								Provider:      p,
								FollowUpUsage: followUpUsage,
								OnCall:        onCall,
							})
						},
					},
				},
			})
			if err != nil {
				return err
			}
			return a.reporter.Report(rep)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", config.ProviderAnthropic, "Provider: anthropic, deepseek, openai, gemini")
	cmd.Flags().BoolVar(&followUpUsage, "follow-up-usage", false, "Fetch missing streaming usage with a second, billed, non-streaming call")
	cmd.Flags().StringVar(&contextDir, "context-dir", "", "Directory holding the reference document (default from config)")
	return cmd
}

func errNoStreaming(provider string) error {
	return fmt.Errorf("provider %q does not support streaming: %w", provider, bench.ErrConfig)
}
