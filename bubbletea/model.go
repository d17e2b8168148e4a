package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/bench"
)

var _ tea.Model = Model{}

const maxBarWidth = 60

// Model is the Bubble Tea model for the run progress view.
type Model struct {
	// Spinner animates while the run is in flight. Exported for test access.
	Spinner spinner.Model
	// Progress renders finished calls over expected calls.
	Progress progress.Model
	// Viewport lists completed calls.
	Viewport viewport.Model

	title  string
	total  int
	run    RunFunc
	styles Styles

	lines  []string
	done   int
	tokens int

	ctx     context.Context
	cancel  context.CancelFunc
	callCh  chan bench.CallResult
	doneCh  chan RunDoneMsg
	running bool
	metrics bench.RunMetrics
	err     error
	ready   bool
}

// New creates a progress Model for a run of total calls labelled title.
// The run starts when the program initializes the model.
func New(title string, total int, run RunFunc, theme bench.Theme) Model {
	ctx, cancel := context.WithCancel(context.Background())

	opts := []progress.Option{progress.WithoutPercentage()}
	if theme.Accent >= 0 {
		opts = append(opts, progress.WithSolidFill(strconv.Itoa(theme.Accent)))
	}
	styles := NewStyles(theme)

	return Model{
		Spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Title)),
		Progress: progress.New(opts...),
		title:    title,
		total:    total,
		run:      run,
		styles:   styles,
		ctx:      ctx,
		cancel:   cancel,
		callCh:   make(chan bench.CallResult, 256),
		doneCh:   make(chan RunDoneMsg, 1),
		running:  true,
	}
}

// Running returns whether the run is still in flight.
func (m Model) Running() bool { return m.running }

// Done returns the number of completed calls.
func (m Model) Done() int { return m.done }

// Metrics returns the finalized metrics once the run has finished.
func (m Model) Metrics() bench.RunMetrics { return m.metrics }

// Err returns the run error, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		startRun(m.ctx, m.run, m.callCh, m.doneCh),
		listenForCall(m.callCh, m.doneCh),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.running {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.Viewport, cmd = m.Viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case CallMsg:
		m = m.recordCall(msg.Result)
		return m, listenForCall(m.callCh, m.doneCh)

	case RunDoneMsg:
		m.running = false
		m.metrics = msg.Metrics
		m.err = msg.Err
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.Progress.ViewAs(m.fraction()))
	b.WriteString("\n")
	// The call list needs a terminal size; the rest renders without one.
	if m.ready {
		b.WriteString(m.Viewport.View())
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	headerHeight := 2 // title and bar
	statusHeight := 1
	vpHeight := msg.Height - headerHeight - statusHeight - 1
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.Viewport.SetContent(strings.Join(m.lines, "\n"))
		m.Viewport.GotoBottom()
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}

	m.Progress.Width = min(msg.Width, maxBarWidth)
	return m
}

func (m Model) recordCall(res bench.CallResult) Model {
	m.done++
	u := res.Response.Usage
	m.tokens += u.Processed()

	line := fmt.Sprintf("#%-3d %8s  in %-6d out %-6d cache %d",
		res.Index, res.WallTime.Round(time.Millisecond), u.InputTokens, u.OutputTokens, u.CacheReadTokens)
	if u.Estimated {
		line += " " + m.styles.Warning.Render("(estimated)")
	}
	m.lines = append(m.lines, line)
	m.Viewport.SetContent(strings.Join(m.lines, "\n"))
	m.Viewport.GotoBottom()
	return m
}

func (m Model) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	return min(float64(m.done)/float64(m.total), 1)
}

func (m Model) header() string {
	count := m.styles.Muted.Render(fmt.Sprintf("%d/%d calls", m.done, m.total))
	switch {
	case m.running:
		return m.Spinner.View() + " " + m.styles.Title.Render(m.title) + "  " + count
	case m.err != nil:
		return m.styles.Error.Render("✗") + " " + m.styles.Title.Render(m.title) + "  " + count
	default:
		return m.styles.Success.Render("✓") + " " + m.styles.Title.Render(m.title) + "  " + count
	}
}

func (m Model) statusLine() string {
	switch {
	case errors.Is(m.err, context.Canceled):
		return m.styles.Error.Render("Cancelled")
	case m.err != nil:
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.running:
		return m.styles.Muted.Render(fmt.Sprintf("%d tokens so far, Ctrl+C to cancel", m.tokens))
	default:
		return m.styles.Muted.Render(fmt.Sprintf("%d tokens in %s", m.metrics.TotalTokens, m.metrics.ExecutionTime.Round(time.Millisecond)))
	}
}

// startRun runs the benchmark in a goroutine and signals completion.
func startRun(ctx context.Context, run RunFunc, callCh chan<- bench.CallResult, doneCh chan<- RunDoneMsg) tea.Cmd {
	return func() tea.Msg {
		metrics, err := run(ctx, func(res bench.CallResult) {
			select {
			case callCh <- res:
			case <-ctx.Done():
			}
		})
		close(callCh)
		doneCh <- RunDoneMsg{Metrics: metrics, Err: err}
		return nil
	}
}

// listenForCall waits for the next completed call. When the channel
// closes, it reads the outcome from doneCh and returns RunDoneMsg.
func listenForCall(ch <-chan bench.CallResult, doneCh <-chan RunDoneMsg) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return <-doneCh
		}
		return CallMsg{Result: res}
	}
}
