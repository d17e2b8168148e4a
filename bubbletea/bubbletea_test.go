package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/bench"
	bt "github.com/fwojciec/bench/bubbletea"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, total int, run bt.RunFunc) bt.Model {
	t.Helper()
	m := bt.New("parallel", total, run, bench.DefaultTheme())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// nopRun is a run that completes immediately with no calls.
func nopRun(_ context.Context, _ func(bench.CallResult)) (bench.RunMetrics, error) {
	return bench.RunMetrics{Final: true}, nil
}

func call(index int, u bench.Usage) bench.CallResult {
	return bench.CallResult{Index: index, Response: bench.Response{Usage: u}}
}
