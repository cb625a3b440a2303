// Command collector records live market data into an append-only event log.
//
// It runs the external price feed (a primary provider with failover), the
// Kalshi WebSocket market-data feed and the REST book poller concurrently.
// Every event is appended to one JSONL file; with -stdout each line is also
// copied to stdout so it can be piped into `candles live`.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-bot/internal/api"
	"github.com/rickgao/kalshi-bot/internal/auth"
	"github.com/rickgao/kalshi-bot/internal/collector"
	"github.com/rickgao/kalshi-bot/internal/config"
	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
	"github.com/rickgao/kalshi-bot/internal/market"
	"github.com/rickgao/kalshi-bot/internal/metrics"
	"github.com/rickgao/kalshi-bot/internal/poller"
	"github.com/rickgao/kalshi-bot/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	out := flag.String("out", "", "event log path (overrides recording.out)")
	stdout := flag.Bool("stdout", false, "also write every recorded line to stdout")
	markets := flag.String("markets", "", "comma-separated Kalshi market tickers (overrides kalshi.markets)")
	noKalshi := flag.Bool("no-kalshi", false, "record only the external price feed")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Recording.Out = *out
	}
	if *stdout {
		cfg.Recording.Stdout = true
	}
	if *markets != "" {
		cfg.Kalshi.Markets = strings.Split(*markets, ",")
	}
	if *noKalshi {
		cfg.Kalshi.Enabled = false
		cfg.Kalshi.PollInterval = 0
	}

	// stdout carries events when mirroring, so logs go to stderr.
	logOut := os.Stdout
	if cfg.Recording.Stdout {
		logOut = os.Stderr
	}
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recOpts := []eventlog.RecorderOption{eventlog.WithLogger(logger)}
	if cfg.Recording.Stdout {
		recOpts = append(recOpts, eventlog.WithMirror(os.Stdout))
	}
	recorder := eventlog.NewRecorder(cfg.Recording.LogPath(time.Now()), recOpts...)

	health := newFeedHealth(time.Minute)
	emit := health.wrap(recorder.Emit)

	logger.Info("recording events", "path", recorder.Path(), "stdout", cfg.Recording.Stdout)

	collectors, registry, err := buildCollectors(cfg, logger)
	if err != nil {
		logger.Error("failed to set up collectors", "error", err)
		os.Exit(1)
	}

	if registry != nil {
		if err := registry.Start(ctx); err != nil {
			logger.Error("failed to start market registry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			registry.Stop(shutdownCtx)
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	if registry != nil {
		g.Go(func() error {
			logMarketChanges(gctx, registry, logger)
			return nil
		})
	}

	for _, c := range collectors {
		g.Go(func() error {
			logger.Info("collector started", "collector", c.Name())
			err := c.Run(gctx, emit)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("collector stopped", "collector", c.Name(), "error", err)
				return err
			}
			logger.Info("collector stopped", "collector", c.Name())
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Port, cfg.Metrics.Path, logger,
				metrics.Route{Pattern: "/health", Handler: health},
			)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("collector exited with error", "error", err)
		os.Exit(1)
	}
	if err := recorder.Err(); err != nil {
		logger.Error("event log is incomplete", "path", recorder.Path(), "error", err)
		os.Exit(1)
	}

	logger.Info("collector stopped", "path", recorder.Path())
}

// buildCollectors assembles the enabled feeds from cfg.
// The registry is non-nil when the poller discovers markets from a series;
// the caller starts and stops it.
func buildCollectors(cfg *config.Config, logger *slog.Logger) (collectors []collector.Collector, registry *market.Registry, err error) {
	collectors = []collector.Collector{cfg.PriceFeed(logger)}

	if !cfg.Kalshi.Enabled && cfg.Kalshi.PollInterval <= 0 {
		return collectors, nil, nil
	}

	var creds *auth.Credentials
	if !cfg.Kalshi.PublicOnly {
		c, err := auth.LoadCredentials(cfg.Kalshi.APIKey, cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			return nil, nil, err
		}
		creds = c
	}

	if cfg.Kalshi.Enabled {
		var signer connection.Signer
		if creds != nil {
			signer = creds
		}
		collectors = append(collectors, collector.NewKalshi(cfg.KalshiCollector(signer), logger))
	}

	if cfg.Kalshi.PollInterval > 0 {
		opts := []api.ClientOption{
			api.WithUserAgent(version.UserAgent()),
			api.WithTimeout(cfg.Kalshi.Timeout),
			api.WithRetries(cfg.Kalshi.MaxRetries, time.Second),
			api.WithLogger(logger),
		}
		if creds != nil {
			opts = append(opts, api.WithSigner(creds))
		}
		client := api.NewClient(cfg.Kalshi.RestURL, opts...)

		var source poller.MarketSource = poller.StaticMarkets(cfg.Kalshi.Markets)
		if len(cfg.Kalshi.Markets) == 0 {
			registry = market.NewRegistry(market.Config{SeriesTicker: cfg.Kalshi.Series}, client, logger)
			source = registry
		}
		collectors = append(collectors, poller.New(cfg.PollerConfig(), client, source, nil, logger))
	}

	return collectors, registry, nil
}

// logMarketChanges logs registry notifications until ctx is done. Newly
// listed markets are logged with their title and close time.
func logMarketChanges(ctx context.Context, registry *market.Registry, logger *slog.Logger) {
	changes := registry.SubscribeChanges()
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-changes:
			attrs := []any{
				"ticker", ch.Ticker,
				"event", ch.EventType,
				"old_status", ch.OldStatus,
				"new_status", ch.NewStatus,
			}
			if ch.EventType == market.ChangeCreated {
				if m, ok := registry.GetMarket(ch.Ticker); ok {
					attrs = append(attrs, "title", m.Title, "close_time", m.CloseTime)
				}
			}
			logger.Info("market change", attrs...)
		}
	}
}
