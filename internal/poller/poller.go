package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/kalshi-bot/internal/api"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// MarketSource provides the market tickers to poll.
type MarketSource interface {
	ActiveMarkets(ctx context.Context) ([]string, error)
}

// StaticMarkets is a fixed list of tickers.
type StaticMarkets []string

// ActiveMarkets returns the list unchanged.
func (s StaticMarkets) ActiveMarkets(context.Context) ([]string, error) {
	return s, nil
}

// TradingGate is implemented by market sources that know whether the
// exchange is trading. Polls are skipped while it is not.
type TradingGate interface {
	ExchangeActive() (exchange, trading bool)
}

// OrderbookFetcher fetches a single orderbook. *api.Client satisfies it.
type OrderbookFetcher interface {
	GetOrderbook(ctx context.Context, ticker string, depth int) (*api.OrderbookResponse, error)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 5s)
	Concurrency int           // Max concurrent requests (default: 10)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		Concurrency: 10,
		Timeout:     10 * time.Second,
	}
}

// Source is the value of the "source" payload field on polled books.
const Source = "rest"

// Poller periodically fetches orderbooks via the REST API.
type Poller struct {
	cfg     Config
	client  OrderbookFetcher
	markets MarketSource
	logger  *slog.Logger

	emitMu sync.Mutex
	emit   event.Emitter
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. Events are passed to emit one at a time.
func New(cfg Config, client OrderbookFetcher, markets MarketSource, emit event.Emitter, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		markets: markets,
		emit:    emit,
		now:     time.Now,
		logger:  logger,
	}
}

// Name returns the provider label used in metrics.
func (p *Poller) Name() string { return "kalshi_rest" }

// Run polls until ctx is done. It lets the poller stand in for a
// collector.Collector.
func (p *Poller) Run(ctx context.Context, emit event.Emitter) error {
	if emit != nil {
		p.emit = emit
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	return p.Stop(stopCtx)
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	if p.emit == nil {
		return fmt.Errorf("poller has no emitter")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("book poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("book poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches orderbooks for all markets concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	if gate, ok := p.markets.(TradingGate); ok {
		if _, trading := gate.ExchangeActive(); !trading {
			p.logger.Debug("trading inactive, skipping poll")
			return
		}
	}

	markets, err := p.markets.ActiveMarkets(p.ctx)
	if err != nil {
		p.logger.Warn("failed to list markets", "error", err)
		return
	}
	if len(markets) == 0 {
		p.logger.Debug("no markets to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, market := range markets {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollMarket(ticker); err != nil {
				p.logger.Warn("failed to poll market",
					"ticker", ticker,
					"error", err,
				)
				metrics.CollectorParseErrors.WithLabelValues(p.Name()).Inc()
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(market)
	}

	wg.Wait()

	p.logger.Debug("poll cycle complete",
		"markets", len(markets),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollMarket fetches a single market's orderbook and emits its top of book.
func (p *Poller) pollMarket(ticker string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	ob, err := p.client.GetOrderbook(ctx, ticker, 1)
	if err != nil {
		return err
	}
	metrics.CollectorMessages.WithLabelValues(p.Name()).Inc()

	ev, ok := BookEvent(p.now(), ticker, ob.Orderbook)
	if !ok {
		p.logger.Debug("empty orderbook", "ticker", ticker)
		return nil
	}

	p.emitMu.Lock()
	p.emit(ev)
	p.emitMu.Unlock()
	return nil
}

// BookEvent builds the VENUE_BOOK event for a polled orderbook. Missing
// sides are left out of raw; ok is false when both are missing.
func BookEvent(at time.Time, ticker string, ob api.APIOrderbook) (event.Event, bool) {
	bid, hasBid, ask, hasAsk := ob.BestBidAsk()
	if !hasBid && !hasAsk {
		return event.Event{}, false
	}

	raw := map[string]any{}
	if hasBid {
		raw["best_bid"] = bid
	}
	if hasAsk {
		raw["best_ask"] = ask
	}

	return event.New(at.UnixMilli(), event.VenueBook, map[string]any{
		"market_ticker": ticker,
		"source":        Source,
		"raw":           raw,
	}), true
}
