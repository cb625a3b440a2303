// Command replay backtests the baseline strategy against a recorded event
// log using the paper matching engine, and prints a JSON summary.
//
// Usage:
//
//	replay [flags] <event log file or dir>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/kalshi-bot/internal/config"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
	"github.com/rickgao/kalshi-bot/internal/replay"
	"github.com/rickgao/kalshi-bot/internal/version"
)

type options struct {
	config  string
	requote string
	out     string
	edge    int
	fair    float64
	noFill  bool
	orders  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "path to config file (defaults apply when empty)")
	flag.StringVar(&opts.requote, "requote", "", "stack or replace (overrides replay.requote_mode)")
	flag.StringVar(&opts.out, "out", "", "append emitted order events to this log (overrides replay.out)")
	flag.IntVar(&opts.edge, "edge", -1, "quote edge in cents (overrides strategy.edge_cents)")
	flag.Float64Var(&opts.fair, "fair", 0, "base fair probability (overrides strategy.base_fair)")
	flag.BoolVar(&opts.noFill, "no-fill", false, "never fill on cross")
	flag.BoolVar(&opts.orders, "orders", false, "include emitted order events in the summary")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replay [flags] <event log file or dir>")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, flag.Arg(0), os.Stdout, os.Stderr); err != nil {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

// output is the printed summary.
type output struct {
	replay.Summary
	Input  string `json:"input"`
	Orders any    `json:"orders,omitempty"`
}

func run(ctx context.Context, opts options, input string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadOrDefault(opts.config)
	if err != nil {
		return err
	}
	if opts.requote != "" {
		cfg.Replay.RequoteMode = opts.requote
	}
	if opts.out != "" {
		cfg.Replay.Out = opts.out
	}
	if opts.edge >= 0 {
		edge := opts.edge
		cfg.Strategy.EdgeCents = &edge
	}
	if opts.fair != 0 {
		cfg.Strategy.BaseFair = opts.fair
	}
	if opts.noFill {
		off := false
		cfg.Paper.FillOnCross = &off
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	pc, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}

	pipeOpts := []replay.PipelineOption{replay.WithPipelineLogger(logger)}
	var rec *eventlog.Recorder
	if cfg.Replay.Out != "" {
		rec = eventlog.NewRecorder(cfg.Replay.Out, eventlog.WithLogger(logger))
		pipeOpts = append(pipeOpts, replay.WithSink(rec.Emit))
	}
	pipe := replay.NewPipeline(pc, pipeOpts...)

	logger.Info("starting replay",
		"version", version.Version,
		"input", input,
		"requote_mode", pc.Requote,
		"edge_cents", pc.Strategy.EdgeCents,
		"fill_on_cross", pc.Paper.FillOnCross,
	)

	var sum replay.Summary
	info, err := os.Stat(input)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// A missing log replays as empty.
		sum, err = pipe.Run(ctx, input)
	case err != nil:
		return fmt.Errorf("stat input: %w", err)
	case info.IsDir():
		evs, stats, rerr := eventlog.ReadDir(input)
		if rerr != nil {
			return rerr
		}
		logger.Info("loaded event logs", "lines", stats.Lines, "events", stats.Events, "skipped", stats.Skipped)
		sum, err = pipe.RunEvents(ctx, evs)
	default:
		sum, err = pipe.Run(ctx, input)
	}
	if err != nil {
		return err
	}
	if rec != nil {
		if err := rec.Err(); err != nil {
			return fmt.Errorf("write order log: %w", err)
		}
	}

	logger.Info("replay complete",
		"run_id", sum.RunID,
		"events", sum.Events,
		"acks", sum.Acks,
		"fills", sum.Fills,
		"cancels", sum.Cancels,
		"pnl_usd", sum.State.PnLUSD,
	)

	res := output{Summary: sum, Input: input}
	if opts.orders {
		res.Orders = sum.Emitted
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
