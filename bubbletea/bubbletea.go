// Package bubbletea provides a Bubble Tea progress view for benchmark runs.
package bubbletea

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/bench"
)

// RunFunc executes one benchmark run. The onCall callback is called for
// each completed provider call. The function blocks until the run finishes
// or the context is cancelled.
type RunFunc func(ctx context.Context, onCall func(bench.CallResult)) (bench.RunMetrics, error)

// Run runs the progress program until the run finishes and returns the
// run's metrics. Cancelling ctx cancels the run.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (bench.RunMetrics, error) {
	p := tea.NewProgram(m, opts...)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.cancel()
		case <-done:
		}
	}()
	final, err := p.Run()
	if err != nil {
		return bench.RunMetrics{}, err
	}
	fm, ok := final.(Model)
	if !ok {
		return bench.RunMetrics{}, fmt.Errorf("unexpected final model %T", final)
	}
	return fm.Metrics(), fm.Err()
}

// CallMsg delivers a completed call to the model.
type CallMsg struct {
	Result bench.CallResult
}

// RunDoneMsg signals that the run has finished.
type RunDoneMsg struct {
	Metrics bench.RunMetrics
	Err     error
}
