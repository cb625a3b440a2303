// Package database provides the TimescaleDB connection pool and schema used
// by the optional candle sink.
//
// The candle log file stays the source of truth; the database is a mirror
// that dashboards can query.
package database
