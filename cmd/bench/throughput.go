package main

import (
	"fmt"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/config"
	"github.com/fwojciec/bench/corpus"
	"github.com/spf13/cobra"
)

func newThroughputCmd(a *app) *cobra.Command {
	var (
		provider    string
		concurrency int
		needles     int
		contextDir  string
	)
	cmd := &cobra.Command{
		Use:   "throughput",
		Short: "Compare sequential and parallel requests over a shared document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if needles < 1 || needles > len(corpus.Needles) {
				return fmt.Errorf("--needles must be between 1 and %d: %w", len(corpus.Needles), bench.ErrConfig)
			}
			if concurrency == 0 {
				concurrency = a.cfg.Benchmark.Concurrency
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be positive: %w", bench.ErrConfig)
			}
			p, err := a.providerFn(ctx, provider)
			if err != nil {
				return err
			}
			document, err := a.loadDocument(contextDir)
			if err != nil {
				return err
			}

			model := a.modelFor(provider)
			reqs := corpus.ThroughputRequests(document, corpus.Needles[:needles], corpus.Settings{
				Model:     model,
				MaxTokens: a.cfg.Benchmark.MaxTokens,
			})
			rep, _, err := a.execute(ctx, scenario{
				name:     "throughput",
				provider: provider,
				model:    model,
				steps: []step{
					{
						name: "sequential",
						reqs: reqs,
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return &bench.Sequential{Provider: p, OnCall: onCall}
						},
					},
					{
						name: "parallel",
						reqs: reqs,
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return &bench.Parallel{Provider: p, Concurrency: concurrency, OnCall: onCall}
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
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum in-flight parallel calls (default from config)")
	cmd.Flags().IntVar(&needles, "needles", len(corpus.Needles), "Number of needle questions to send")
	cmd.Flags().StringVar(&contextDir, "context-dir", "", "Directory holding the reference document (default from config)")
	return cmd
}

// loadDocument reads the reference document from dir, or from the
// configured directory when dir is empty.
func (a *app) loadDocument(dir string) (string, error) {
	if dir == "" {
		dir = a.cfg.Benchmark.ContextDir
	}
	return corpus.LoadContext(dir, a.cfg.Benchmark.ContextPattern)
}
