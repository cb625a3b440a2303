package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-bot/internal/buffer"
	"github.com/rickgao/kalshi-bot/internal/candle"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// BatchSender is the subset of pgxpool.Pool the writer needs.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// CandleWriter consumes finalized candles from a buffer and writes them to
// the candles table.
type CandleWriter struct {
	cfg    WriterConfig
	kind   string
	logger *slog.Logger

	// Input from the candle runner
	input *buffer.Growable[candle.Candle]

	// Database
	db BatchSender

	// Batching
	batch       []candleRow
	batchMu     sync.Mutex
	flushMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewCandleWriter creates a CandleWriter for candles of the given kind
// (for example CANDLE_5M).
func NewCandleWriter(
	cfg WriterConfig,
	kind string,
	input *buffer.Growable[candle.Candle],
	db BatchSender,
	logger *slog.Logger,
) *CandleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &CandleWriter{
		cfg:    cfg,
		kind:   kind,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]candleRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming candles and writing to the database.
func (w *CandleWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("candle writer started",
		"kind", w.kind,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains whatever is left in the input buffer, writes it and shuts
// down. ctx bounds both the wait and the final flush.
func (w *CandleWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping candle writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("candle writer stop timed out")
	}

	// Final flush
	for _, c := range w.input.DrainTo(0) {
		w.add(c)
	}
	w.flush(ctx)

	st := w.Stats()
	q := w.input.Stats()
	w.logger.Info("candle writer stopped",
		"inserts", st.Inserts,
		"conflicts", st.Conflicts,
		"errors", st.Errors,
		"received", q.TotalOut,
		"buffer_resizes", q.ResizeCount,
	)
	return nil
}

// Stats returns current metrics.
func (w *CandleWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *CandleWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			c, ok := w.input.TryReceive()
			if !ok {
				// Buffer empty, wait a bit before trying again
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			if w.add(c) {
				w.flush(w.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *CandleWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends a candle to the batch and reports whether it is full.
func (w *CandleWriter) add(c candle.Candle) bool {
	row := w.transform(c)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a Candle to a candleRow.
func (w *CandleWriter) transform(c candle.Candle) candleRow {
	return candleRow{
		Kind:             w.kind,
		Symbol:           c.Symbol,
		CandleStart:      time.UnixMilli(c.CandleStartMs).UTC(),
		CandleStartLocal: c.CandleStartLocal,
		Open:             c.Open,
		High:             c.High,
		Low:              c.Low,
		Close:            c.Close,
		Ticks:            c.Ticks,
		FirstTsMs:        c.FirstTsMs,
		LastTsMs:         c.LastTsMs,
	}
}

// flush writes the current batch to the database.
func (w *CandleWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]candleRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	inserted := len(batch) - conflicts
	metrics.CandleRowsWritten.Add(float64(inserted))

	w.batchMu.Lock()
	w.metrics.Inserts += int64(inserted)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed candles",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

const insertCandle = `
	INSERT INTO candles (kind, symbol, candle_start, candle_start_local, open, high, low, close, ticks, first_ts_ms, last_ts_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (kind, symbol, candle_start) DO NOTHING
`

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *CandleWriter) batchInsert(ctx context.Context, rows []candleRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertCandle,
			r.Kind, r.Symbol, r.CandleStart, r.CandleStartLocal,
			r.Open, r.High, r.Low, r.Close,
			r.Ticks, r.FirstTsMs, r.LastTsMs,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
