package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/kalshi-bot/internal/buffer"
	"github.com/rickgao/kalshi-bot/internal/candle"
)

func runLive(args []string) error {
	fs := flag.NewFlagSet("live", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	follow := fs.String("follow", "", "tail this event log instead of reading stdin")
	latest := fs.String("latest", "", "latest-candle snapshot path (overrides candles.latest)")
	fs.Parse(args)

	// Logs go to stderr so stdout stays free for piping.
	cfg, logger, err := common.load(os.Stderr)
	if err != nil {
		return err
	}
	if *latest != "" {
		cfg.Candles.Latest = *latest
	}
	slug := candleSlug(cfg.Candles.Symbol, cfg.Candles.WidthMinutes)
	out := cfg.Candles.Out
	if out == "" {
		out = fmt.Sprintf("state/candles/%s_live.jsonl", slug)
	}
	latestPath := cfg.Candles.Latest
	if latestPath == "" {
		latestPath = fmt.Sprintf("state/candles/%s_latest.json", slug)
	}

	b, err := cfg.Bucketer()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink, err := startSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Stop()
	}

	lines := buffer.New[string](1024)
	source := "stdin"
	reads := make(chan readResult, 1)
	if *follow != "" {
		source = *follow
		go func() {
			reads <- readResult{err: candle.Follow(ctx, *follow, lines, logger)}
		}()
	} else {
		go func() {
			skipped, err := candle.ReadLines(os.Stdin, lines)
			reads <- readResult{skipped: skipped, err: err}
		}()
	}

	logger.Info("live candles started",
		"source", source,
		"width_minutes", b.Minutes(),
		"timezone", cfg.Candles.Timezone,
		"symbol", cfg.Candles.Symbol,
		"out", out,
		"latest", latestPath,
	)

	live := candle.NewLive(candle.LiveConfig{
		Bucketer:      b,
		Symbol:        cfg.Candles.Symbol,
		OutPath:       out,
		LatestPath:    latestPath,
		StatsInterval: cfg.Candles.StatsInterval,
	}, sinkFunc(sink), logger)

	final, err := live.Run(ctx, lines)
	read := waitReader(ctx, err, reads)
	logger.Info("STATS_FINAL",
		"ticks_seen", final.TicksSeen,
		"last_tick_ms", deref(final.LastTickMs),
		"candles", final.Candles,
		"final_candle_start_ms", deref(final.CandleStartMs),
		"final_candle_ticks", final.CandleTicks,
		"lines_skipped", final.LinesSkipped+int64(read.skipped),
	)
	if err != nil {
		return err
	}
	if read.err != nil {
		return fmt.Errorf("read %s: %w", source, read.err)
	}
	return nil
}

// readResult is what the line reader goroutine reports when it stops.
type readResult struct {
	skipped int
	err     error
}

// waitReader collects the reader's result once the run is over. A drained
// queue means the reader has already returned; after cancellation or a
// failed run it may still be blocked on stdin, so it is not waited for.
func waitReader(ctx context.Context, runErr error, reads <-chan readResult) readResult {
	if runErr == nil && ctx.Err() == nil {
		return <-reads
	}
	select {
	case r := <-reads:
		return r
	default:
		return readResult{}
	}
}

func deref(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
