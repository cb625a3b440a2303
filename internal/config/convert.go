package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rickgao/kalshi-bot/internal/candle"
	"github.com/rickgao/kalshi-bot/internal/collector"
	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/paper"
	"github.com/rickgao/kalshi-bot/internal/poller"
	"github.com/rickgao/kalshi-bot/internal/replay"
	"github.com/rickgao/kalshi-bot/internal/strategy"
)

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// LogPath returns the event log file for a recording started at now: Out
// when set, otherwise a timestamped file under Dir.
func (r RecordingConfig) LogPath(now time.Time) string {
	if r.Out != "" {
		return r.Out
	}
	return filepath.Join(r.Dir, "events_"+now.UTC().Format("20060102T150405Z")+".jsonl")
}

// Bucketer builds the candle bucketer from the candles section.
func (c *Config) Bucketer() (candle.Bucketer, error) {
	b, err := candle.NewBucketer(c.Candles.WidthMinutes, c.Candles.Timezone)
	if err != nil {
		return candle.Bucketer{}, fmt.Errorf("candles: %w", err)
	}
	return b, nil
}

// StrategyParams returns the strategy section as strategy.Config.
func (c *Config) StrategyParams() strategy.Config {
	p := strategy.Config{
		BaseFair: c.Strategy.BaseFair,
		Size:     c.Strategy.Size,
		Contract: c.Strategy.Contract,
	}
	if c.Strategy.EdgeCents != nil {
		p.EdgeCents = *c.Strategy.EdgeCents
	}
	return p
}

// PipelineConfig returns the strategy, paper and replay sections as a
// replay.PipelineConfig.
func (c *Config) PipelineConfig() (replay.PipelineConfig, error) {
	mode, err := replay.ParseRequoteMode(c.Replay.RequoteMode)
	if err != nil {
		return replay.PipelineConfig{}, fmt.Errorf("replay.requote_mode: %w", err)
	}
	return replay.PipelineConfig{
		Strategy: c.StrategyParams(),
		Paper:    paper.Config{FillOnCross: c.Paper.FillOnCrossEnabled()},
		Requote:  mode,
	}, nil
}

func reconnect(base, max time.Duration, maxFailures int) collector.ReconnectConfig {
	rc := collector.DefaultReconnectConfig()
	if base > 0 {
		rc.BaseDelay = base
	}
	if max > 0 {
		rc.MaxDelay = max
	}
	rc.MaxFailures = maxFailures
	return rc
}

// PriceFeed builds the external price collector: the failover primary,
// falling back to the other provider once the primary gives up.
func (c *Config) PriceFeed(logger *slog.Logger) collector.Collector {
	build := func(provider string) collector.Collector {
		switch provider {
		case collector.ProviderCoinbase:
			return collector.NewCoinbase(collector.CoinbaseConfig{
				URL:       c.Coinbase.URL,
				ProductID: c.Coinbase.ProductID,
				Symbol:    c.Coinbase.Symbol,
				Reconnect: reconnect(c.Coinbase.ReconnectBaseDelay, c.Coinbase.ReconnectMaxDelay, c.Failover.MaxFailures),
			}, logger)
		default:
			return collector.NewBinance(collector.BinanceConfig{
				URL:       c.Binance.URL,
				Symbol:    c.Binance.Symbol,
				Stream:    c.Binance.Stream,
				Reconnect: reconnect(c.Binance.ReconnectBaseDelay, c.Binance.ReconnectMaxDelay, c.Failover.MaxFailures),
			}, logger)
		}
	}
	return collector.NewFailover(collector.FailoverConfig{
		RetryDelay:  c.Failover.RetryDelay,
		PrimaryRun:  c.Failover.PrimaryRun,
		FallbackRun: c.Failover.FallbackRun,
	}, build(c.Failover.Primary), build(c.Failover.Fallback), logger)
}

// KalshiCollector returns the Kalshi WS collector settings. signer may be
// nil for public-only connections.
func (c *Config) KalshiCollector(signer connection.Signer) collector.KalshiConfig {
	return collector.KalshiConfig{
		URL:         c.Kalshi.WSURL,
		Channels:    c.Kalshi.Channels,
		Markets:     c.Kalshi.Markets,
		Signer:      signer,
		PingTimeout: c.Kalshi.PingTimeout,
		Reconnect:   reconnect(c.Kalshi.ReconnectBaseDelay, c.Kalshi.ReconnectMaxDelay, 0),
	}
}

// PollerConfig returns the REST book poller settings.
func (c *Config) PollerConfig() poller.Config {
	return poller.Config{
		Interval:    c.Kalshi.PollInterval,
		Concurrency: c.Kalshi.PollConcurrency,
		Timeout:     c.Kalshi.Timeout,
	}
}
