package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rickgao/kalshi-bot/internal/candle"
)

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	fs.Parse(args)

	inputs := fs.Args()
	if len(inputs) == 0 {
		return errors.New("build needs at least one event log file or directory")
	}

	cfg, logger, err := common.load(os.Stderr)
	if err != nil {
		return err
	}
	out := cfg.Candles.Out
	if out == "" {
		out = fmt.Sprintf("state/candles/%s.jsonl", candleSlug(cfg.Candles.Symbol, cfg.Candles.WidthMinutes))
	}

	b, err := cfg.Bucketer()
	if err != nil {
		return err
	}
	paths, err := candle.InputFiles(inputs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no *.jsonl event logs found in inputs")
	}

	sink, err := startSink(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Stop()
	}

	logger.Info("building candles",
		"inputs", len(paths),
		"width_minutes", b.Minutes(),
		"timezone", cfg.Candles.Timezone,
		"symbol", cfg.Candles.Symbol,
		"out", out,
	)

	sum, err := candle.Build(paths, b, cfg.Candles.Symbol, out, sinkFunc(sink))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// candleSlug names default output files, e.g. btcusdt_5m.
func candleSlug(symbol string, width int) string {
	if symbol == "" {
		symbol = "all"
	}
	return fmt.Sprintf("%s_%dm", strings.ToLower(symbol), width)
}
