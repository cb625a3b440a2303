package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// ErrGaveUp is returned by Run after too many consecutive failed connects.
var ErrGaveUp = errors.New("too many consecutive connection failures")

// Collector streams events from one upstream feed until ctx is done.
type Collector interface {
	Name() string
	Run(ctx context.Context, emit event.Emitter) error
}

// ReconnectConfig controls the wait between sessions.
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64 // growth per failure; <= 1 means 2
	MaxFailures int     // consecutive failed connects before giving up; 0 = never
}

// DefaultReconnectConfig returns sensible defaults.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Factor:    1.8,
	}
}

// sessionFunc runs one connection. connected reports whether the
// connection was established before it ended.
type sessionFunc func(ctx context.Context) (connected bool, err error)

// runSessions calls session until ctx is done, sleeping with backoff
// between attempts. It returns nil on cancellation.
func runSessions(ctx context.Context, name string, rc ReconnectConfig, logger *slog.Logger, session sessionFunc) error {
	if rc.BaseDelay <= 0 {
		rc.BaseDelay = DefaultReconnectConfig().BaseDelay
	}
	backoff := connection.NewBackoff(rc.BaseDelay, rc.MaxDelay, rc.Factor)
	failures := 0

	for {
		connected, err := session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			backoff.Reset()
			failures = 0
		} else {
			failures++
			if rc.MaxFailures > 0 && failures >= rc.MaxFailures {
				return fmt.Errorf("%s: %w: %v", name, ErrGaveUp, err)
			}
		}

		wait := backoff.Next()
		metrics.CollectorReconnects.WithLabelValues(name).Inc()
		logger.Warn("feed disconnected, reconnecting",
			"provider", name,
			"error", err,
			"connected", connected,
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// streamSession dials cfg, calls onConnect once and feeds every frame to
// onMessage until the connection fails or ctx is done.
func streamSession(
	ctx context.Context,
	cfg connection.ClientConfig,
	logger *slog.Logger,
	onConnect func(connection.Client) error,
	onMessage func(connection.TimestampedMessage),
) (bool, error) {
	client := connection.NewClient(cfg, logger)
	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if onConnect != nil {
		if err := onConnect(client); err != nil {
			return true, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg := <-client.Messages():
			onMessage(msg)
		case err := <-client.Errors():
			// Deliver whatever was read before the failure.
		drain:
			for {
				select {
				case msg := <-client.Messages():
					onMessage(msg)
				default:
					break drain
				}
			}
			return true, err
		}
	}
}
