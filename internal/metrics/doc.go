// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Event log appends and skipped lines
//   - Candle ticks and finalized candles
//   - Paper order acks, fills and cancels
//   - Collector message, parse error and reconnect counts
package metrics
