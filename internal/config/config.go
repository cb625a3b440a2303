package config

import "time"

// Config is the root configuration shared by all commands.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Recording RecordingConfig `yaml:"recording"`
	Candles   CandlesConfig   `yaml:"candles"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Paper     PaperConfig     `yaml:"paper"`
	Replay    ReplayConfig    `yaml:"replay"`
	Kalshi    KalshiConfig    `yaml:"kalshi"`
	Binance   BinanceConfig   `yaml:"binance"`
	Coinbase  CoinbaseConfig  `yaml:"coinbase"`
	Failover  FailoverConfig  `yaml:"failover"`
	Database  DatabaseConfig  `yaml:"database"`
	Writers   WritersConfig   `yaml:"writers"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// RecordingConfig controls where collectors write the event log.
type RecordingConfig struct {
	Dir    string `yaml:"dir"`
	Out    string `yaml:"out"`    // explicit file; default is a timestamped file under dir
	Stdout bool   `yaml:"stdout"` // mirror every recorded line to stdout
}

// CandlesConfig holds candle aggregation settings.
type CandlesConfig struct {
	WidthMinutes  int           `yaml:"width_minutes"`
	Timezone      string        `yaml:"timezone"`
	Symbol        string        `yaml:"symbol"` // empty accepts every symbol
	Out           string        `yaml:"out"`
	Latest        string        `yaml:"latest"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	Sink          bool          `yaml:"sink"` // also write candles to database.timescale
}

// StrategyConfig holds the baseline quoting parameters.
type StrategyConfig struct {
	BaseFair  float64 `yaml:"base_fair"`
	EdgeCents *int    `yaml:"edge_cents"` // unset means the default; 0 is allowed
	Size      float64 `yaml:"size"`
	Contract  string  `yaml:"contract"`
}

// PaperConfig controls the paper matching engine.
type PaperConfig struct {
	FillOnCross *bool `yaml:"fill_on_cross"`
}

// ReplayConfig controls backtest replays.
type ReplayConfig struct {
	RequoteMode string `yaml:"requote_mode"` // stack or replace
	Out         string `yaml:"out"`          // optional log of emitted order events
}

// KalshiConfig holds Kalshi API settings.
type KalshiConfig struct {
	Env            string        `yaml:"env"` // demo or prod
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	APIKey         string        `yaml:"api_key"`          // API key ID (for KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`

	Enabled         bool          `yaml:"enabled"`
	PublicOnly      bool          `yaml:"public_only"`
	Channels        []string      `yaml:"channels"`
	Markets         []string      `yaml:"markets"`
	Series          string        `yaml:"series"`        // polled when markets is empty
	PollInterval    time.Duration `yaml:"poll_interval"` // REST book poller; 0 disables it
	PollConcurrency int           `yaml:"poll_concurrency"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
}

// BinanceConfig configures the Binance futures bookTicker collector.
type BinanceConfig struct {
	URL                string        `yaml:"url"`
	Symbol             string        `yaml:"symbol"`
	Stream             string        `yaml:"stream"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// CoinbaseConfig configures the Coinbase ticker collector.
type CoinbaseConfig struct {
	URL                string        `yaml:"url"`
	ProductID          string        `yaml:"product_id"`
	Symbol             string        `yaml:"symbol"` // symbol written to events; empty uses product_id
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// FailoverConfig orders the external price providers.
type FailoverConfig struct {
	Primary     string        `yaml:"primary"`
	Fallback    string        `yaml:"fallback"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	PrimaryRun  time.Duration `yaml:"primary_run"`  // >0 stops after this long on the primary
	FallbackRun time.Duration `yaml:"fallback_run"` // >0 stops after this long on the fallback
	MaxFailures int           `yaml:"max_failures"` // failed connects before switching providers
}

// DatabaseConfig holds the TimescaleDB connection for the candle sink.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"ssl_mode"`
	MaxConns   int    `yaml:"max_conns"`
	MinConns   int    `yaml:"min_conns"`
	Hypertable bool   `yaml:"hypertable"` // convert candles to a hypertable (needs timescaledb)
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings. The endpoint is only
// served when Enabled is set.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// FillOnCrossEnabled reports the effective fill setting. Unset means true.
func (p PaperConfig) FillOnCrossEnabled() bool {
	return p.FillOnCross == nil || *p.FillOnCross
}
