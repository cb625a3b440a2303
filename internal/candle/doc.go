// Package candle aggregates EXTERNAL_PRICE ticks into OHLC candles aligned
// to the wall clock of a configured time zone (America/New_York by default).
//
// Two entry points share one implementation:
//   - Aggregate turns a tick sequence into a candle sequence (batch builds)
//   - Builder takes one tick at a time and returns finished candles (live)
//
// Candle logs are JSONL with a CANDLE_<n>M type field. The live runner also
// keeps a pretty-printed snapshot of the in-progress candle, replaced
// atomically on every tick.
package candle
