package writer

import (
	"time"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// candleRow represents a row to be inserted into the candles table.
type candleRow struct {
	Kind             string
	Symbol           string
	CandleStart      time.Time // UTC
	CandleStartLocal string
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Ticks            int
	FirstTsMs        int64
	LastTsMs         int64
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
