package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createCandles = `CREATE TABLE IF NOT EXISTS candles (
	kind               TEXT             NOT NULL,
	symbol             TEXT             NOT NULL,
	candle_start       TIMESTAMPTZ      NOT NULL,
	candle_start_local TEXT             NOT NULL,
	open               DOUBLE PRECISION NOT NULL,
	high               DOUBLE PRECISION NOT NULL,
	low                DOUBLE PRECISION NOT NULL,
	close              DOUBLE PRECISION NOT NULL,
	ticks              INTEGER          NOT NULL,
	first_ts_ms        BIGINT           NOT NULL,
	last_ts_ms         BIGINT           NOT NULL,
	PRIMARY KEY (kind, symbol, candle_start)
)`

const createHypertable = `SELECT create_hypertable('candles', 'candle_start', if_not_exists => TRUE)`

// EnsureSchema creates the candles table if it does not exist. When
// hypertable is set the table is also converted to a TimescaleDB hypertable,
// which requires the timescaledb extension.
func EnsureSchema(ctx context.Context, db Execer, hypertable bool) error {
	if _, err := db.Exec(ctx, createCandles); err != nil {
		return fmt.Errorf("create candles table: %w", err)
	}
	if hypertable {
		if _, err := db.Exec(ctx, createHypertable); err != nil {
			return fmt.Errorf("create candles hypertable: %w", err)
		}
	}
	return nil
}
