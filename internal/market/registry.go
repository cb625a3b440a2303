package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/kalshi-bot/internal/api"
)

// Lister is the subset of *api.Client the registry needs.
type Lister interface {
	GetExchangeStatus(ctx context.Context) (*api.ExchangeStatusResponse, error)
	ListMarkets(ctx context.Context, opts api.GetMarketsOptions, statuses []string, prefix string) ([]api.APIMarket, error)
}

// Config holds Market Registry configuration.
type Config struct {
	SeriesTicker      string
	Statuses          []string // listed statuses (default: open, unopened)
	ReconcileInterval time.Duration
	PageSize          int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Statuses:          []string{"open", "unopened"},
		ReconcileInterval: 5 * time.Minute,
		PageSize:          200,
	}
}

// Registry keeps the markets of one series in memory.
type Registry struct {
	cfg    Config
	rest   Lister
	logger *slog.Logger

	state *registryState
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a new Market Registry.
func NewRegistry(cfg Config, rest Lister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = def.Statuses
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}

	return &Registry{
		cfg:    cfg,
		rest:   rest,
		logger: logger,
		state:  newState(),
		now:    time.Now,
	}
}

// Start runs the initial sync and begins background reconciliation.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	// Initial sync (blocking).
	if err := r.initialSync(r.ctx); err != nil {
		r.cancel()
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(r.ctx)
	}()

	r.logger.Info("market registry started",
		"series", r.cfg.SeriesTicker,
		"active_markets", len(r.state.activeTickers()),
	)

	return nil
}

// Stop gracefully shuts down.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveMarkets returns the sorted tickers currently open for trading. It
// satisfies poller.MarketSource.
func (r *Registry) ActiveMarkets(context.Context) ([]string, error) {
	return r.state.activeTickers(), nil
}

// GetMarket returns a listed market by ticker.
func (r *Registry) GetMarket(ticker string) (api.APIMarket, bool) {
	return r.state.getMarket(ticker)
}

// SubscribeChanges returns the channel of market changes.
func (r *Registry) SubscribeChanges() <-chan MarketChange {
	return r.state.changes
}

// ExchangeActive reports the exchange and trading flags from the last
// status check. It satisfies poller.TradingGate.
func (r *Registry) ExchangeActive() (exchange, trading bool) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	return r.state.exchangeActive, r.state.tradingActive
}

// initialSync checks the exchange and loads the series' markets.
func (r *Registry) initialSync(ctx context.Context) error {
	if err := r.checkExchangeStatus(ctx); err != nil {
		return err
	}

	start := time.Now()
	n, err := r.sync(ctx)
	if err != nil {
		return fmt.Errorf("initial market sync: %w", err)
	}

	r.logger.Info("initial sync complete",
		"series", r.cfg.SeriesTicker,
		"total_markets", n,
		"duration", time.Since(start),
	)
	return nil
}

// checkExchangeStatus records whether the exchange is active.
func (r *Registry) checkExchangeStatus(ctx context.Context) error {
	status, err := r.rest.GetExchangeStatus(ctx)
	if err != nil {
		return err
	}

	r.state.mu.Lock()
	r.state.exchangeActive = status.ExchangeActive
	r.state.tradingActive = status.TradingActive
	r.state.mu.Unlock()

	if !status.ExchangeActive {
		r.logger.Warn("exchange is not active",
			"estimated_resume", status.EstimatedResumeTime,
		)
		// Continue anyway; reconciliation picks markets up once it resumes.
	}

	return nil
}

// sync lists the series and publishes every difference from the cache.
func (r *Registry) sync(ctx context.Context) (int, error) {
	listed, err := r.rest.ListMarkets(ctx, api.GetMarketsOptions{
		SeriesTicker: r.cfg.SeriesTicker,
		Limit:        r.cfg.PageSize,
	}, r.cfg.Statuses, "")
	if err != nil {
		return 0, err
	}

	for _, change := range r.state.replace(listed, r.now()) {
		r.state.notifyChange(change)
	}
	return len(listed), nil
}

// reconciliationLoop periodically syncs with REST API.
func (r *Registry) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile refreshes the listing, keeping the previous one on failure.
func (r *Registry) reconcile(ctx context.Context) {
	start := time.Now()

	if err := r.checkExchangeStatus(ctx); err != nil {
		r.logger.Warn("exchange status check failed", "error", err)
	}

	n, err := r.sync(ctx)
	if err != nil {
		r.logger.Error("reconciliation failed", "series", r.cfg.SeriesTicker, "error", err)
		return
	}

	r.logger.Debug("reconciliation complete",
		"total_markets", n,
		"duration", time.Since(start),
	)
}
