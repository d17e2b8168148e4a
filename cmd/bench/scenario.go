package main

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/bench"
	bt "github.com/fwojciec/bench/bubbletea"
	benchjson "github.com/fwojciec/bench/json"
)

// step is one run of a scenario. build receives the per-call hook and
// returns the strategy to execute.
type step struct {
	name  string
	reqs  []bench.Request
	build func(onCall func(bench.CallResult)) bench.Strategy
}

// scenario is a sequence of runs compared against the first.
type scenario struct {
	name     string
	provider string
	model    string
	steps    []step

	// cacheHitRatio fixes the pricing ratio; nil uses the measured one.
	cacheHitRatio *float64
}

// stepResult is a finished run with the text of its last response.
type stepResult struct {
	run  bench.Run
	last string
}

// execute runs every step in order and returns the report. Runs are saved
// and the report exported when the flags ask for it.
func (a *app) execute(ctx context.Context, sc scenario) (bench.Report, []stepResult, error) {
	log := a.logger.With("scenario", sc.name, "provider", sc.provider)
	results := make([]stepResult, 0, len(sc.steps))
	for _, st := range sc.steps {
		res, err := a.executeStep(ctx, log, sc, st)
		if err != nil {
			return bench.Report{}, nil, err
		}
		results = append(results, res)
	}

	rep := bench.Report{Scenario: sc.name}
	metrics := make([]bench.RunMetrics, 0, len(results))
	for _, res := range results {
		rep.Runs = append(rep.Runs, res.run)
		metrics = append(metrics, res.run.Metrics)
	}
	rep.Comparisons = bench.CompareAll(metrics)

	if err := a.persist(ctx, &rep); err != nil {
		return bench.Report{}, nil, err
	}
	return rep, results, nil
}

func (a *app) executeStep(ctx context.Context, log *slog.Logger, sc scenario, st step) (stepResult, error) {
	h := bench.NewHarness(a.cfg.Pricing.PriceTable(), log)
	h.CacheHitRatio = sc.cacheHitRatio

	var last string
	record := func(res bench.CallResult) {
		h.LogCall(res)
		last = res.Response.Text
	}

	var (
		m   bench.RunMetrics
		err error
	)
	if a.progressEnabled() {
		// The progress view owns the terminal; the report carries the
		// warnings the harness would log.
		h.Logger = nil
		run := func(ctx context.Context, onCall func(bench.CallResult)) (bench.RunMetrics, error) {
			return h.Run(ctx, st.build(func(res bench.CallResult) {
				record(res)
				onCall(res)
			}), st.reqs)
		}
		model := bt.New(st.name, len(st.reqs), run, bench.DefaultTheme())
		m, err = bt.Run(ctx, model, tea.WithOutput(a.stdout))
	} else {
		m, err = h.Run(ctx, st.build(record), st.reqs)
	}
	if err != nil {
		return stepResult{}, fmt.Errorf("%s: %w", sc.name, err)
	}
	return stepResult{
		run: bench.Run{
			Scenario: sc.name,
			Provider: sc.provider,
			Model:    sc.model,
			Metrics:  m,
		},
		last: last,
	}, nil
}

func (a *app) persist(ctx context.Context, rep *bench.Report) error {
	if a.save {
		s, err := a.runStore(ctx)
		if err != nil {
			return err
		}
		for i := range rep.Runs {
			if err := s.SaveRun(ctx, &rep.Runs[i]); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
		}
		a.logger.Info("runs saved", "scenario", rep.Scenario, "runs", len(rep.Runs))
	}
	if a.out != "" {
		if err := benchjson.Save(a.out, *rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		a.logger.Info("report written", "path", a.out)
	}
	return nil
}

func mapRequests(reqs []bench.Request, fn func(bench.Request) bench.Request) []bench.Request {
	out := make([]bench.Request, len(reqs))
	for i, r := range reqs {
		out[i] = fn(r)
	}
	return out
}
