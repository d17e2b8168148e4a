package main

import (
	"fmt"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/config"
	"github.com/fwojciec/bench/corpus"
	"github.com/spf13/cobra"
)

func newMemoryCmd(a *app) *cobra.Command {
	var (
		provider string
		queries  []string
		userID   string
		skipSeed bool
	)
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Compare sending full history with sending retrieved memories",
		Long: "Answers the same queries twice: once with the whole developer " +
			"preference history in the prompt, once with only the memories the " +
			"memory service retrieves for each query. Both runs are priced " +
			"without cache hits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.providerFn(ctx, provider)
			if err != nil {
				return err
			}
			mem, err := a.memoryFn()
			if err != nil {
				return err
			}
			if userID == "" {
				userID = a.cfg.Memory.UserID
			}

			history := corpus.DeveloperHistory()
			if !skipSeed {
				if err := mem.Add(ctx, history, userID, corpus.MemoryVersion); err != nil {
					return fmt.Errorf("seed memory: %w", err)
				}
				a.logger.Info("memory seeded", "user_id", userID, "messages", len(history))
			}

			model := a.modelFor(provider)
			settings := bench.PromptSettings{Model: model, MaxTokens: a.cfg.Benchmark.MaxTokens}
			full, err := bench.BuildRequests(ctx, bench.FullHistory{PromptSettings: settings, History: history}, queries)
			if err != nil {
				return err
			}
			retrieved, err := bench.BuildRequests(ctx, bench.MemoryRetrieval{PromptSettings: settings, Searcher: mem, UserID: userID}, queries)
			if err != nil {
				return err
			}

			noCache := 0.0
			rep, results, err := a.execute(ctx, scenario{
				name:          "memory",
				provider:      provider,
				model:         model,
				cacheHitRatio: &noCache,
				steps: []step{
					{
						name: "full-history",
						reqs: full,
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return bench.Named("full-history", &bench.Sequential{Provider: p, OnCall: onCall})
						},
					},
					{
						name: "memory-retrieval",
						reqs: retrieved,
						build: func(onCall func(bench.CallResult)) bench.Strategy {
							return bench.Named("memory-retrieval", &bench.Sequential{Provider: p, OnCall: onCall})
						},
					},
				},
			})
			if err != nil {
				return err
			}
			for _, res := range results {
				if err := a.reporter.Response("Response ("+res.run.Metrics.Strategy+")", res.last); err != nil {
					return err
				}
			}
			return a.reporter.Report(rep)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", config.ProviderDeepSeek, "Provider: deepseek, openai, anthropic, gemini")
	cmd.Flags().StringArrayVar(&queries, "query", []string{corpus.DefaultQuery}, "Query to answer (repeatable)")
	cmd.Flags().StringVar(&userID, "user-id", "", "Memory user ID (default from config)")
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not add the history to the memory service first")
	return cmd
}
