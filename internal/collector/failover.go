package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-bot/internal/event"
)

// FailoverConfig controls a Failover runner.
type FailoverConfig struct {
	RetryDelay  time.Duration // pause after the fallback ends before retrying the primary
	PrimaryRun  time.Duration // >0 returns after running the primary this long
	FallbackRun time.Duration // >0 returns after running the fallback this long
}

// Failover runs a primary collector and switches to a fallback when the
// primary returns. Once the fallback returns too, it waits RetryDelay and
// starts over with the primary.
type Failover struct {
	cfg      FailoverConfig
	primary  Collector
	fallback Collector
	logger   *slog.Logger
}

// NewFailover creates a Failover runner.
func NewFailover(cfg FailoverConfig, primary, fallback Collector, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Failover{cfg: cfg, primary: primary, fallback: fallback, logger: logger}
}

// Name returns "primary->fallback".
func (f *Failover) Name() string {
	return f.primary.Name() + "->" + f.fallback.Name()
}

// Run alternates between the collectors until ctx is done or a bounded run
// completes.
func (f *Failover) Run(ctx context.Context, emit event.Emitter) error {
	for {
		done, err := f.runFor(ctx, f.primary, f.cfg.PrimaryRun, emit)
		if ctx.Err() != nil || done {
			return nil
		}
		f.logger.Warn("primary feed stopped, switching to fallback",
			"primary", f.primary.Name(),
			"fallback", f.fallback.Name(),
			"error", err,
		)

		done, err = f.runFor(ctx, f.fallback, f.cfg.FallbackRun, emit)
		if ctx.Err() != nil || done {
			return nil
		}
		f.logger.Warn("fallback feed stopped, retrying primary",
			"fallback", f.fallback.Name(),
			"error", err,
			"retry_delay", f.cfg.RetryDelay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.RetryDelay):
		}
	}
}

// runFor runs c, bounded by limit when positive. done reports that the
// bound elapsed while the parent context was still live.
func (f *Failover) runFor(ctx context.Context, c Collector, limit time.Duration, emit event.Emitter) (done bool, err error) {
	runCtx := ctx
	if limit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	err = c.Run(runCtx, emit)
	if limit > 0 && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		f.logger.Info("bounded run finished", "provider", c.Name(), "duration", limit)
		return true, nil
	}
	return false, err
}
