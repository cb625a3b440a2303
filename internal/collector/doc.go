// Package collector streams live market data into the event log.
//
// Collectors:
//   - Binance futures bookTicker and Coinbase ticker (EXTERNAL_PRICE)
//   - Kalshi WebSocket v2 market data (VENUE_BOOK, VENUE_TRADE, CONNECTION)
//   - Failover runs a primary price feed and falls back to a secondary one
//
// Every collector reconnects with capped exponential backoff and hands each
// event to an event.Emitter. Frames are inspected with gjson; numeric fields
// of Kalshi messages are kept as json.Number under payload["raw"].
package collector
