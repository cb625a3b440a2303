package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Providers lists the external price providers the collectors support.
var Providers = []string{"binance", "coinbase"}

// PrivateChannels are Kalshi channels that require an authenticated
// connection.
var PrivateChannels = []string{"orderbook_delta", "fill", "market_positions", "communications", "order_group_updates"}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if _, err := c.Bucketer(); err != nil {
		return err
	}
	if c.Candles.StatsInterval < 0 {
		return errors.New("candles.stats_interval must be >= 0")
	}

	if err := c.StrategyParams().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if _, err := c.PipelineConfig(); err != nil {
		return err
	}

	if _, ok := kalshiEndpoints[c.Kalshi.Env]; !ok {
		return fmt.Errorf("kalshi.env must be demo or prod, got %q", c.Kalshi.Env)
	}
	if c.Kalshi.MaxRetries < 0 {
		return errors.New("kalshi.max_retries must be >= 0")
	}
	if c.Kalshi.PublicOnly {
		var private []string
		for _, ch := range c.Kalshi.Channels {
			if slices.Contains(PrivateChannels, ch) {
				private = append(private, ch)
			}
		}
		if len(private) > 0 {
			return fmt.Errorf("kalshi.public_only cannot be used with private channels: %s", strings.Join(private, ","))
		}
	}
	if c.Kalshi.PollInterval < 0 {
		return errors.New("kalshi.poll_interval must be >= 0")
	}
	if c.Kalshi.PollConcurrency < 1 {
		return errors.New("kalshi.poll_concurrency must be >= 1")
	}

	if !slices.Contains(Providers, c.Failover.Primary) {
		return fmt.Errorf("failover.primary must be one of %s, got %q", strings.Join(Providers, ","), c.Failover.Primary)
	}
	if !slices.Contains(Providers, c.Failover.Fallback) {
		return fmt.Errorf("failover.fallback must be one of %s, got %q", strings.Join(Providers, ","), c.Failover.Fallback)
	}
	if c.Failover.Fallback == c.Failover.Primary {
		return fmt.Errorf("failover.fallback must differ from failover.primary (%s)", c.Failover.Primary)
	}
	if c.Failover.MaxFailures < 0 {
		return errors.New("failover.max_failures must be >= 0")
	}

	if c.Candles.Sink {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
