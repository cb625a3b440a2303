// Package api provides the Kalshi REST client.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Requests are signed with KALSHI-ACCESS-* headers when a RequestSigner is
// configured; market data endpoints also work unsigned.
package api
