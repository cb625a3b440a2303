// Package poller implements the REST book poller.
//
// The poller:
//   - Fetches Kalshi orderbooks on a fixed interval
//   - Reduces each book to the best YES bid and implied YES ask
//   - Emits VENUE_BOOK events with source="rest"
//   - Uses concurrent requests with a bounded semaphore
//
// It complements the WebSocket collector when no orderbook channel is
// subscribed or the stream is down.
package poller
