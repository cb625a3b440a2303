// Command candles aggregates EXTERNAL_PRICE ticks into OHLC candles.
//
// Usage:
//
//	candles build [flags] <log file or dir>...   batch build a candle log
//	candles live  [flags]                        stream stdin (or -follow a file) into a candle log
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rickgao/kalshi-bot/internal/config"
	"github.com/rickgao/kalshi-bot/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "live":
		err = runLive(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("candles failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: candles <build|live> [flags]")
	fmt.Fprintln(w, "  build [flags] <log file or dir>...  build a candle log from recorded events")
	fmt.Fprintln(w, "  live  [flags]                       build candles from stdin or a followed file")
}

// commonFlags are shared by both subcommands and override the config file.
type commonFlags struct {
	config   string
	width    int
	timezone string
	symbol   string
	out      string
	sink     bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "path to config file (defaults apply when empty)")
	fs.IntVar(&c.width, "width", 0, "candle width in minutes (overrides candles.width_minutes)")
	fs.StringVar(&c.timezone, "tz", "", "bucket time zone (overrides candles.timezone)")
	fs.StringVar(&c.symbol, "symbol", "", "only aggregate this symbol (overrides candles.symbol)")
	fs.StringVar(&c.out, "out", "", "candle log path (overrides candles.out)")
	fs.BoolVar(&c.sink, "sink", false, "also write candles to database.timescale")
}

// load reads the config, applies flag overrides and sets up logging on w.
func (c *commonFlags) load(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(c.config)
	if err != nil {
		return nil, nil, err
	}
	if c.width != 0 {
		cfg.Candles.WidthMinutes = c.width
	}
	if c.timezone != "" {
		cfg.Candles.Timezone = c.timezone
	}
	if c.symbol != "" {
		cfg.Candles.Symbol = c.symbol
	}
	if c.out != "" {
		cfg.Candles.Out = c.out
	}
	if c.sink {
		cfg.Candles.Sink = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	logger, err := cfg.Log.NewLogger(w)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	logger.Debug("candles starting", "version", version.String())
	return cfg, logger, nil
}
