// Package writer implements the batching TimescaleDB writer for finalized
// candles.
//
// The writer consumes a growable buffer fed by the candle runner and inserts
// rows in batches with ON CONFLICT DO NOTHING, so re-running a build over the
// same recordings never duplicates rows.
package writer
