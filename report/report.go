// Package report renders benchmark reports as terminal tables or JSON.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/bench"
	benchjson "github.com/fwojciec/bench/json"
	"golang.org/x/term"
)

const defaultWidth = 80

// Format selects the output encoding.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want auto, table or json)", bench.ErrConfig, s)
	}
}

// Resolve turns FormatAuto into table when w is a terminal and JSON
// otherwise.
func Resolve(f Format, w io.Writer) Format {
	if f != FormatAuto {
		return f
	}
	if isTerminal(w) {
		return FormatTable
	}
	return FormatJSON
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func terminalWidth(w io.Writer) int {
	if file, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// Reporter writes reports to an output stream.
type Reporter struct {
	w      io.Writer
	format Format
	theme  bench.Theme
	width  int
	styles styles
}

type styles struct {
	table   tableStyles
	good    lipgloss.Style
	bad     lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
}

// New returns a Reporter writing to w. FormatAuto is resolved against w.
func New(w io.Writer, format Format, theme bench.Theme) *Reporter {
	return &Reporter{
		w:      w,
		format: Resolve(format, w),
		theme:  theme,
		width:  terminalWidth(w),
		styles: newStyles(theme),
	}
}

func newStyles(t bench.Theme) styles {
	return styles{
		table: tableStyles{
			title:  lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
			header: lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
			border: lipgloss.NewStyle().Foreground(ansiColor(t.Border)),
			label:  lipgloss.NewStyle(),
		},
		good:    lipgloss.NewStyle().Foreground(ansiColor(t.Success)),
		bad:     lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		warning: lipgloss.NewStyle().Foreground(ansiColor(t.Warning)),
		muted:   lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

// Format returns the resolved output format.
func (r *Reporter) Format() Format { return r.format }

// Report writes a scenario report: a metrics table with one column per run
// followed by the comparisons against the first run.
func (r *Reporter) Report(rep bench.Report) error {
	if r.format == FormatJSON {
		return r.writeJSON(rep)
	}

	var b strings.Builder
	b.WriteString(r.metricsTable(rep).render(r.styles.table))
	for _, c := range rep.Comparisons {
		b.WriteString("\n")
		b.WriteString(r.comparison(c))
	}
	if notes := r.notes(rep.Runs); notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Runs writes a listing of stored runs, newest first.
func (r *Reporter) Runs(runs []bench.Run) error {
	if r.format == FormatJSON {
		return r.writeJSON(bench.Report{Runs: runs})
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(r.w, r.styles.muted.Render("No runs stored."))
		return err
	}

	t := table{
		headers: []string{"ID", "Created", "Scenario", "Strategy", "Provider", "Tokens", "Time", "Tok/s", "Cost"},
	}
	for _, run := range runs {
		m := run.Metrics
		t.rows = append(t.rows, []string{
			shortID(run.ID),
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.Scenario,
			m.Strategy,
			run.Provider,
			formatNumber(m.TotalTokens),
			formatSeconds(m.ExecutionTime),
			fmt.Sprintf("%.2f", m.Throughput),
			formatCost(m.EstimatedCost),
		})
	}
	_, err := io.WriteString(r.w, t.render(r.styles.table))
	return err
}

// Response writes a model response rendered as markdown. It writes nothing
// in JSON mode, where responses are not part of the document.
func (r *Reporter) Response(title, text string) error {
	if r.format == FormatJSON {
		return nil
	}
	var b strings.Builder
	b.WriteString(r.styles.table.title.Render(title))
	b.WriteString("\n")
	b.WriteString(RenderMarkdown(text, r.width, r.theme))
	b.WriteString("\n")
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Reporter) writeJSON(rep bench.Report) error {
	data, err := benchjson.MarshalReport(rep)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = r.w.Write(data)
	return err
}

func (r *Reporter) metricsTable(rep bench.Report) table {
	t := table{
		title:   strings.ToUpper(rep.Scenario) + " METRICS",
		headers: []string{"Metric"},
	}
	for _, run := range rep.Runs {
		t.headers = append(t.headers, run.Metrics.Strategy)
	}

	row := func(label string, cell func(bench.RunMetrics) string) {
		cells := []string{label}
		for _, run := range rep.Runs {
			cells = append(cells, cell(run.Metrics))
		}
		t.rows = append(t.rows, cells)
	}
	row("Requests", func(m bench.RunMetrics) string { return strconv.Itoa(m.NumRequests) })
	row("Total tokens processed", func(m bench.RunMetrics) string { return formatNumber(m.TotalTokens) })
	row("Input tokens", func(m bench.RunMetrics) string { return formatNumber(m.InputTokens) })
	row("Output tokens", func(m bench.RunMetrics) string { return formatNumber(m.OutputTokens) })
	row("Cache read tokens", func(m bench.RunMetrics) string { return formatNumber(m.CacheReadTokens) })
	row("Cache creation tokens", func(m bench.RunMetrics) string { return formatNumber(m.CacheWriteTokens) })
	row("Cache hit ratio", func(m bench.RunMetrics) string { return formatPercent(m.CacheHitRatio * 100) })
	row("Execution time", func(m bench.RunMetrics) string { return formatSeconds(m.ExecutionTime) })
	row("Avg call latency", func(m bench.RunMetrics) string { return formatSeconds(m.AvgLatency()) })
	row("TTFT (first request)", func(m bench.RunMetrics) string {
		if m.TTFT == nil {
			return "N/A"
		}
		return formatSeconds(*m.TTFT)
	})
	row("Avg token throughput", func(m bench.RunMetrics) string { return fmt.Sprintf("%.2f tok/s", m.Throughput) })
	row("Estimated cost", func(m bench.RunMetrics) string { return formatCost(m.EstimatedCost) })
	return t
}

func (r *Reporter) comparison(c bench.Comparison) string {
	var b strings.Builder
	b.WriteString(r.styles.table.title.Render(c.Candidate + " vs " + c.Baseline))
	b.WriteString("\n")

	line := func(label, value string) {
		fmt.Fprintf(&b, "  %-22s %s\n", label, value)
	}
	if c.HasSpeedup {
		verdict := fmt.Sprintf("%.2fx (%s, %s saved)", c.Speedup, formatSignedPercent(c.TimeImprovementPct), formatSeconds(c.TimeSaved))
		line("Speedup", r.signed(c.Speedup-1, verdict))
	}
	if c.HasThroughput {
		line("Throughput", r.signed(c.ThroughputImprovementPct, formatSignedPercent(c.ThroughputImprovementPct)))
	}
	if c.HasTTFT {
		line("TTFT improvement", r.signed(c.TTFTImprovementPct, formatSignedPercent(c.TTFTImprovementPct)))
	}
	if c.HasCost {
		line("Cost reduction", r.signed(c.CostReductionPct, formatSignedPercent(c.CostReductionPct)))
	}
	if c.SameTotalTokens {
		b.WriteString(r.styles.muted.Render("  Same total tokens processed; only timing differs."))
		b.WriteString("\n")
	}
	return b.String()
}

// signed colors text by whether delta is an improvement.
func (r *Reporter) signed(delta float64, text string) string {
	switch {
	case delta > 0:
		return r.styles.good.Render(text)
	case delta < 0:
		return r.styles.bad.Render(text)
	default:
		return text
	}
}

func (r *Reporter) notes(runs []bench.Run) string {
	var b strings.Builder
	for _, run := range runs {
		m := run.Metrics
		if m.Degraded() {
			b.WriteString(r.styles.warning.Render(fmt.Sprintf(
				"! %s: usage of %d call(s) estimated from text length", m.Strategy, m.EstimatedCalls)))
			b.WriteString("\n")
		}
		if m.FollowUpCalls > 0 {
			b.WriteString(r.styles.warning.Render(fmt.Sprintf(
				"! %s: %d follow-up call(s) made to fetch usage; tokens were billed twice", m.Strategy, m.FollowUpCalls)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
