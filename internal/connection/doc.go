// Package connection wraps a single gorilla/websocket connection.
//
// The client:
//   - Dials a ws:// or wss:// URL, optionally signing the handshake
//   - Delivers every frame on a buffered channel with a local receive time
//   - Answers server pings and detects stale connections
//   - Reports read failures on an error channel
//
// Reconnection is left to callers; Backoff computes the capped
// exponential waits between attempts.
package connection
