// Package market implements the series market registry.
//
// The registry:
//   - Discovers a series' markets via the REST API on startup
//   - Reconciles the list on a fixed interval
//   - Serves the currently tradeable tickers to the REST book poller
//   - Publishes created, status_change and removed notifications
package market
