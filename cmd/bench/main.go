// Command bench measures how LLM request strategies affect latency,
// throughput, token usage and cost.
//
// Usage:
//
//	ANTHROPIC_API_KEY=sk-... bench throughput [flags]
//	ANTHROPIC_API_KEY=sk-... bench caching [flags]
//	DEEPSEEK_API_KEY=... MEM0_API_KEY=... bench memory [flags]
//	bench runs [--scenario name] [--limit n]
//
// Global flags:
//
//	--config string      Path to a YAML or TOML config file (default bench.yaml)
//	--format string      Output format: auto, table, json (default auto)
//	--log-level string   debug, info, warn, error (default info)
//	--log-format string  text or json (default text)
//	--save               Persist runs to the configured store
//	--out string         Also write the report as JSON to this path
//	--no-progress        Disable the live progress view
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	return a.runRoot(ctx, newRootCmd(a))
}
