package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultRecordingDir       = "state/recordings"
	DefaultCandleWidth        = 5
	DefaultTimezone           = "America/New_York"
	DefaultCandleSymbol       = "BTCUSDT"
	DefaultStatsInterval      = 30 * time.Second
	DefaultBaseFair           = 0.50
	DefaultEdgeCents          = 2
	DefaultSize               = 1.0
	DefaultContract           = "YES"
	DefaultRequoteMode        = "stack"
	DefaultKalshiEnv          = "demo"
	DefaultAPITimeout         = 20 * time.Second
	DefaultMaxRetries         = 3
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultBinanceURL         = "wss://fstream.binance.com/ws"
	DefaultBinanceSymbol      = "btcusdt"
	DefaultBinanceStream      = "bookTicker"
	DefaultCoinbaseURL        = "wss://ws-feed.exchange.coinbase.com"
	DefaultCoinbaseProduct    = "BTC-USD"
	DefaultFailoverPrimary    = "binance"
	DefaultFailoverFallback   = "coinbase"
	DefaultFailoverRetryDelay = 2 * time.Second
	DefaultFailoverFailures   = 5
	DefaultKalshiSeries       = "KXBTC15M"
	DefaultPollConcurrency    = 10
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 1000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// Kalshi endpoints per environment.
var kalshiEndpoints = map[string]struct{ rest, ws string }{
	"demo": {
		rest: "https://demo-api.kalshi.co/trade-api/v2",
		ws:   "wss://demo-api.kalshi.co/trade-api/ws/v2",
	},
	"prod": {
		rest: "https://api.elections.kalshi.com/trade-api/v2",
		ws:   "wss://api.elections.kalshi.com/trade-api/ws/v2",
	},
}

// DefaultChannels are the Kalshi channels subscribed when none are configured.
var DefaultChannels = []string{"ticker", "trade"}

func (c *Config) applyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if c.Recording.Dir == "" {
		c.Recording.Dir = DefaultRecordingDir
	}

	// Candle defaults
	if c.Candles.WidthMinutes == 0 {
		c.Candles.WidthMinutes = DefaultCandleWidth
	}
	if c.Candles.Timezone == "" {
		c.Candles.Timezone = DefaultTimezone
	}
	if c.Candles.Symbol == "" {
		c.Candles.Symbol = DefaultCandleSymbol
	}
	if c.Candles.StatsInterval == 0 {
		c.Candles.StatsInterval = DefaultStatsInterval
	}

	// Strategy defaults
	if c.Strategy.BaseFair == 0 {
		c.Strategy.BaseFair = DefaultBaseFair
	}
	if c.Strategy.EdgeCents == nil {
		edge := DefaultEdgeCents
		c.Strategy.EdgeCents = &edge
	}
	if c.Strategy.Size == 0 {
		c.Strategy.Size = DefaultSize
	}
	if c.Strategy.Contract == "" {
		c.Strategy.Contract = DefaultContract
	}

	if c.Replay.RequoteMode == "" {
		c.Replay.RequoteMode = DefaultRequoteMode
	}

	// Kalshi defaults
	if c.Kalshi.Env == "" {
		c.Kalshi.Env = DefaultKalshiEnv
	}
	if ep, ok := kalshiEndpoints[c.Kalshi.Env]; ok {
		if c.Kalshi.RestURL == "" {
			c.Kalshi.RestURL = ep.rest
		}
		if c.Kalshi.WSURL == "" {
			c.Kalshi.WSURL = ep.ws
		}
	}
	if c.Kalshi.Timeout == 0 {
		c.Kalshi.Timeout = DefaultAPITimeout
	}
	if c.Kalshi.MaxRetries == 0 {
		c.Kalshi.MaxRetries = DefaultMaxRetries
	}
	if len(c.Kalshi.Channels) == 0 {
		c.Kalshi.Channels = append([]string(nil), DefaultChannels...)
	}
	if c.Kalshi.Series == "" {
		c.Kalshi.Series = DefaultKalshiSeries
	}
	if c.Kalshi.PollConcurrency == 0 {
		c.Kalshi.PollConcurrency = DefaultPollConcurrency
	}
	if c.Kalshi.ReconnectBaseDelay == 0 {
		c.Kalshi.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Kalshi.ReconnectMaxDelay == 0 {
		c.Kalshi.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Kalshi.PingTimeout == 0 {
		c.Kalshi.PingTimeout = DefaultPingTimeout
	}

	// External price defaults
	if c.Binance.URL == "" {
		c.Binance.URL = DefaultBinanceURL
	}
	if c.Binance.Symbol == "" {
		c.Binance.Symbol = DefaultBinanceSymbol
	}
	if c.Binance.Stream == "" {
		c.Binance.Stream = DefaultBinanceStream
	}
	if c.Binance.ReconnectBaseDelay == 0 {
		c.Binance.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Binance.ReconnectMaxDelay == 0 {
		c.Binance.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Coinbase.URL == "" {
		c.Coinbase.URL = DefaultCoinbaseURL
	}
	if c.Coinbase.ProductID == "" {
		c.Coinbase.ProductID = DefaultCoinbaseProduct
	}
	if c.Coinbase.ReconnectBaseDelay == 0 {
		c.Coinbase.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Coinbase.ReconnectMaxDelay == 0 {
		c.Coinbase.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Failover.Primary == "" {
		c.Failover.Primary = DefaultFailoverPrimary
	}
	if c.Failover.Fallback == "" {
		c.Failover.Fallback = DefaultFailoverFallback
	}
	if c.Failover.RetryDelay == 0 {
		c.Failover.RetryDelay = DefaultFailoverRetryDelay
	}
	if c.Failover.MaxFailures == 0 {
		c.Failover.MaxFailures = DefaultFailoverFailures
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// SetKalshiEnv switches the Kalshi environment and points both URLs at its
// endpoints. Unknown environments keep the current URLs and fail Validate.
func (c *Config) SetKalshiEnv(env string) {
	c.Kalshi.Env = env
	if ep, ok := kalshiEndpoints[env]; ok {
		c.Kalshi.RestURL = ep.rest
		c.Kalshi.WSURL = ep.ws
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
