package collector

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// ProviderBinance and ProviderCoinbase name the external price feeds.
const (
	ProviderBinance  = "binance"
	ProviderCoinbase = "coinbase"
)

// BinanceConfig configures the Binance futures top-of-book collector.
type BinanceConfig struct {
	URL       string // e.g. wss://fstream.binance.com/ws
	Symbol    string // stream symbol, lower case (btcusdt)
	Stream    string // bookTicker
	Reconnect ReconnectConfig
}

// StreamURL returns the single-stream endpoint, e.g.
// wss://fstream.binance.com/ws/btcusdt@bookTicker.
func (c BinanceConfig) StreamURL() string {
	return strings.TrimRight(c.URL, "/") + "/" + strings.ToLower(c.Symbol) + "@" + c.Stream
}

// Binance records bookTicker updates as EXTERNAL_PRICE events.
type Binance struct {
	cfg    BinanceConfig
	logger *slog.Logger
}

// NewBinance creates a Binance collector.
func NewBinance(cfg BinanceConfig, logger *slog.Logger) *Binance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binance{cfg: cfg, logger: logger.With("provider", ProviderBinance)}
}

// Name returns the provider name.
func (b *Binance) Name() string { return ProviderBinance }

// Run streams until ctx is done or the reconnect budget is spent.
func (b *Binance) Run(ctx context.Context, emit event.Emitter) error {
	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = b.cfg.StreamURL()
	clientCfg.PingInterval = 0 // the server pings every few minutes

	b.logger.Info("starting collector", "url", clientCfg.URL)

	return runSessions(ctx, ProviderBinance, b.cfg.Reconnect, b.logger, func(ctx context.Context) (bool, error) {
		return streamSession(ctx, clientCfg, b.logger, nil, func(msg connection.TimestampedMessage) {
			if ev, ok := parseBinance(msg); ok {
				emit(ev)
			}
		})
	})
}

// parseBinance converts a bookTicker frame. Frames without a positive bid
// and ask are dropped.
func parseBinance(msg connection.TimestampedMessage) (event.Event, bool) {
	metrics.CollectorMessages.WithLabelValues(ProviderBinance).Inc()

	if !gjson.ValidBytes(msg.Data) {
		metrics.CollectorParseErrors.WithLabelValues(ProviderBinance).Inc()
		return event.Event{}, false
	}
	fields := gjson.GetManyBytes(msg.Data, "b", "a", "s")
	bid, ok := positivePrice(fields[0])
	if !ok {
		return event.Event{}, false
	}
	ask, ok := positivePrice(fields[1])
	if !ok {
		return event.Event{}, false
	}

	return event.New(msg.ReceivedAt.UnixMilli(), event.ExternalPrice, map[string]any{
		"provider": ProviderBinance,
		"symbol":   fields[2].String(),
		"bid":      bid,
		"ask":      ask,
		"mid":      (bid + ask) / 2,
	}), true
}

// positivePrice reads a price sent as a JSON string or number.
func positivePrice(r gjson.Result) (float64, bool) {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}
