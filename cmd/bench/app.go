package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fwojciec/bench"
	"github.com/fwojciec/bench/config"
	"github.com/fwojciec/bench/report"
	"github.com/fwojciec/bench/store"
	"github.com/fwojciec/bench/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultConfigPath = "bench.yaml"

// app holds the flags and the dependencies shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	format     string
	logLevel   string
	logFormat  string
	save       bool
	out        string
	noProgress bool

	cfg      config.Config
	logger   *slog.Logger
	otel     *telemetry.Runtime
	reporter *report.Reporter
	store    bench.RunStore
	closers  []func() error

	// Constructors replaced in tests.
	providerFn func(ctx context.Context, name string) (bench.Provider, error)
	memoryFn   func() (bench.MemorySearcher, error)
	storeFn    func(ctx context.Context) (bench.RunStore, error)
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{stdout: stdout, stderr: stderr}
	a.providerFn = a.buildProvider
	a.memoryFn = a.buildMemory
	a.storeFn = a.openStore
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bench",
		Short:         "Benchmark LLM request strategies",
		Long:          "Measure how request strategies (parallelism, prefix caching, streaming, memory retrieval) affect latency, throughput, token usage and cost.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfigPath, "Path to a YAML or TOML config file")
	flags.StringVar(&a.format, "format", string(report.FormatAuto), "Output format: auto, table, json")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "text", "Log format: text, json")
	flags.BoolVar(&a.save, "save", false, "Persist runs to the configured store")
	flags.StringVar(&a.out, "out", "", "Also write the report as JSON to this path")
	flags.BoolVar(&a.noProgress, "no-progress", false, "Disable the live progress view")

	root.AddCommand(
		newThroughputCmd(a),
		newCachingCmd(a),
		newMemoryCmd(a),
		newRunsCmd(a),
	)
	return root
}

// runRoot executes root and always tears the app down afterwards, so the
// store is closed and telemetry flushed when a command fails too.
func (a *app) runRoot(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.shutdown(ctx))
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(a.stderr, a.logLevel, a.logFormat)
	if err != nil {
		return err
	}
	a.logger = logger

	format, err := report.ParseFormat(a.format)
	if err != nil {
		return err
	}
	a.reporter = report.New(a.stdout, format, bench.DefaultTheme())

	rt, err := telemetry.Setup(ctx, cfg.Observability.OTel, version, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.otel = rt
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.otel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// runStore opens the configured store on first use.
func (a *app) runStore(ctx context.Context) (bench.RunStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := a.storeFn(ctx)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) openStore(ctx context.Context) (bench.RunStore, error) {
	sc := a.cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	var target string
	switch driver {
	case config.StorageNone, "":
		return nil, fmt.Errorf("storage is disabled (storage.driver: none): %w", bench.ErrConfig)
	case config.StorageSQLite:
		target = sc.Path
	case config.StoragePostgres:
		target = sc.DSN
	}
	s, err := store.Open(ctx, driver, target)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// progressEnabled reports whether runs should show the live progress view.
func (a *app) progressEnabled() bool {
	if a.noProgress || a.reporter.Format() != report.FormatTable {
		return false
	}
	f, ok := a.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, bench.ErrConfig)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json): %w", format, bench.ErrConfig)
	}
}
