package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/rickgao/kalshi-bot/internal/connection"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// ProviderKalshi names the Kalshi market data feed.
const ProviderKalshi = "kalshi"

// Connection statuses written to CONNECTION events.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// KalshiConfig configures the Kalshi WebSocket market data collector.
type KalshiConfig struct {
	URL         string            // wss://.../trade-api/ws/v2
	Channels    []string          // ticker, trade, orderbook_delta, ...
	Markets     []string          // empty subscribes to every market on the channels
	Signer      connection.Signer // nil connects without authentication
	Header      http.Header
	PingTimeout time.Duration
	Reconnect   ReconnectConfig
}

// Kalshi subscribes to Kalshi WS v2 channels and records every data frame.
type Kalshi struct {
	cfg    KalshiConfig
	logger *slog.Logger
}

// NewKalshi creates a Kalshi collector.
func NewKalshi(cfg KalshiConfig, logger *slog.Logger) *Kalshi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kalshi{cfg: cfg, logger: logger.With("provider", ProviderKalshi)}
}

// Name returns the provider name.
func (k *Kalshi) Name() string { return ProviderKalshi }

// subscribeCommand builds the subscribe frame sent after every connect.
func (k *Kalshi) subscribeCommand() connection.Command {
	return connection.Command{
		ID:  1,
		Cmd: "subscribe",
		Params: connection.SubscribeParams{
			Channels:      k.cfg.Channels,
			MarketTickers: k.cfg.Markets,
		},
	}
}

// Run streams until ctx is done or the reconnect budget is spent. Each
// connection attempt is bracketed by CONNECTION events sharing a session id.
func (k *Kalshi) Run(ctx context.Context, emit event.Emitter) error {
	clientCfg := connection.DefaultClientConfig()
	clientCfg.URL = k.cfg.URL
	clientCfg.Signer = k.cfg.Signer
	clientCfg.Header = k.cfg.Header
	clientCfg.PingInterval = 20 * time.Second
	if k.cfg.PingTimeout > 0 {
		clientCfg.PingTimeout = k.cfg.PingTimeout
	}

	sub, err := json.Marshal(k.subscribeCommand())
	if err != nil {
		return fmt.Errorf("encode subscribe: %w", err)
	}

	k.logger.Info("starting collector",
		"url", k.cfg.URL,
		"channels", k.cfg.Channels,
		"markets", len(k.cfg.Markets),
		"auth", k.cfg.Signer != nil,
	)

	return runSessions(ctx, ProviderKalshi, k.cfg.Reconnect, k.logger, func(ctx context.Context) (bool, error) {
		sessionID := uuid.NewString()

		connected, err := streamSession(ctx, clientCfg, k.logger,
			func(client connection.Client) error {
				if err := client.Send(sub); err != nil {
					return fmt.Errorf("send subscribe: %w", err)
				}
				emit(k.connectionEvent(time.Now(), sessionID, StatusConnected, nil))
				return nil
			},
			func(msg connection.TimestampedMessage) {
				if ev, ok := k.route(msg); ok {
					emit(ev)
				}
			},
		)

		status := StatusDisconnected
		if !connected {
			status = StatusError
		}
		emit(k.connectionEvent(time.Now(), sessionID, status, err))
		return connected, err
	})
}

func (k *Kalshi) connectionEvent(at time.Time, sessionID, status string, err error) event.Event {
	payload := map[string]any{
		"provider":   ProviderKalshi,
		"status":     status,
		"session_id": sessionID,
		"url":        k.cfg.URL,
	}
	if status == StatusConnected {
		payload["channels"] = k.cfg.Channels
		payload["markets"] = k.cfg.Markets
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	return event.New(at.UnixMilli(), event.Connection, payload)
}

// route turns one frame into an event. Command responses are logged and
// not recorded.
func (k *Kalshi) route(msg connection.TimestampedMessage) (event.Event, bool) {
	metrics.CollectorMessages.WithLabelValues(ProviderKalshi).Inc()

	if !gjson.ValidBytes(msg.Data) {
		metrics.CollectorParseErrors.WithLabelValues(ProviderKalshi).Inc()
		k.logger.Warn("failed to parse message", "size", len(msg.Data))
		return event.Event{}, false
	}
	fields := gjson.GetManyBytes(msg.Data, "type", "sid", "seq", "msg", "msg.market_ticker", "id")
	msgType := fields[0].String()

	switch msgType {
	case "subscribed", "unsubscribed", "ok":
		k.logger.Debug("command response", "type", msgType, "id", fields[5].Int(), "sid", fields[3].Get("sid").Int())
		return event.Event{}, false
	case "error":
		k.logger.Warn("command error",
			"id", fields[5].Int(),
			"code", fields[3].Get("code").Int(),
			"msg", fields[3].Get("msg").String(),
		)
		return event.Event{}, false
	}

	// The original message body; the whole frame when msg is not an object.
	rawJSON := msg.Data
	if fields[3].IsObject() {
		rawJSON = []byte(fields[3].Raw)
	}
	raw, err := decodeObject(rawJSON)
	if err != nil {
		metrics.CollectorParseErrors.WithLabelValues(ProviderKalshi).Inc()
		return event.Event{}, false
	}

	ts := msg.ReceivedAt.UnixMilli()
	switch msgType {
	case "trade":
		return event.New(ts, event.VenueTrade, k.venuePayload(msgType, fields, raw)), true
	case "ticker", "ticker_v2", "orderbook_snapshot", "orderbook_delta":
		return event.New(ts, event.VenueBook, k.venuePayload(msgType, fields, raw)), true
	default:
		// Unrecognized channels are kept for later inspection.
		return event.New(ts, event.VenueBook, map[string]any{
			"type": msgType,
			"raw":  raw,
		}), true
	}
}

func (k *Kalshi) venuePayload(channel string, fields []gjson.Result, raw map[string]any) map[string]any {
	payload := map[string]any{
		"channel":       channel,
		"market_ticker": fields[4].String(),
		"raw":           raw,
	}
	if fields[1].Exists() {
		payload["sid"] = fields[1].Int()
	}
	if fields[2].Exists() {
		payload["seq"] = fields[2].Int()
	}
	return payload
}

// decodeObject decodes a JSON object keeping numbers as json.Number.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("not an object")
	}
	return out, nil
}
