package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// CoinbaseConfig configures the Coinbase Exchange ticker collector.
type CoinbaseConfig struct {
	URL       string // e.g. wss://ws-feed.exchange.coinbase.com
	ProductID string // BTC-USD
	Symbol    string // symbol written to events; empty uses ProductID
	Reconnect ReconnectConfig
}

// Coinbase records ticker channel updates as EXTERNAL_PRICE events.
type Coinbase struct {
	cfg    CoinbaseConfig
	logger *slog.Logger
}

// NewCoinbase creates a Coinbase collector.
func NewCoinbase(cfg CoinbaseConfig, logger *slog.Logger) *Coinbase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coinbase{cfg: cfg, logger: logger.With("provider", ProviderCoinbase)}
}

// Name returns the provider name.
func (c *Coinbase) Name() string { return ProviderCoinbase }

type coinbaseSubscribe struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Run streams until ctx is done or the reconnect budget is spent.
func (c *Coinbase) Run(ctx context.Context, emit event.Emitter) error {
	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = c.cfg.URL

	sub, err := json.Marshal(coinbaseSubscribe{
		Type:       "subscribe",
		ProductIDs: []string{c.cfg.ProductID},
		Channels:   []string{"ticker"},
	})
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}

	c.logger.Info("starting collector", "url", clientCfg.URL, "product_id", c.cfg.ProductID)

	return runSessions(ctx, ProviderCoinbase, c.cfg.Reconnect, c.logger, func(ctx context.Context) (bool, error) {
		return streamSession(ctx, clientCfg, c.logger,
			func(client connection.Client) error {
				return client.Send(sub)
			},
			func(msg connection.TimestampedMessage) {
				if ev, ok := c.parse(msg); ok {
					emit(ev)
				}
			},
		)
	})
}

// parse converts a ticker frame. Subscriptions acks, heartbeats and frames
// without a positive best bid and ask are dropped.
func (c *Coinbase) parse(msg connection.TimestampedMessage) (event.Event, bool) {
	metrics.CollectorMessages.WithLabelValues(ProviderCoinbase).Inc()

	if !gjson.ValidBytes(msg.Data) {
		metrics.CollectorParseErrors.WithLabelValues(ProviderCoinbase).Inc()
		return event.Event{}, false
	}
	fields := gjson.GetManyBytes(msg.Data, "type", "best_bid", "best_ask", "product_id", "message")

	switch fields[0].String() {
	case "ticker":
	case "error":
		c.logger.Warn("coinbase error message", "message", fields[4].String())
		return event.Event{}, false
	default:
		return event.Event{}, false
	}

	bid, ok := positivePrice(fields[1])
	if !ok {
		return event.Event{}, false
	}
	ask, ok := positivePrice(fields[2])
	if !ok {
		return event.Event{}, false
	}

	symbol := c.cfg.Symbol
	if symbol == "" {
		symbol = fields[3].String()
	}

	return event.New(msg.ReceivedAt.UnixMilli(), event.ExternalPrice, map[string]any{
		"provider": ProviderCoinbase,
		"symbol":   symbol,
		"bid":      bid,
		"ask":      ask,
		"mid":      (bid + ask) / 2,
	}), true
}
