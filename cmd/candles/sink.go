package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-bot/internal/buffer"
	"github.com/rickgao/kalshi-bot/internal/candle"
	"github.com/rickgao/kalshi-bot/internal/config"
	"github.com/rickgao/kalshi-bot/internal/database"
	"github.com/rickgao/kalshi-bot/internal/writer"
)

// timescaleSink mirrors finalized candles into TimescaleDB.
type timescaleSink struct {
	queue  *buffer.Growable[candle.Candle]
	writer *writer.CandleWriter
	close  func()
}

// startSink connects to the database, ensures the schema and starts a
// candle writer. It returns nil when the sink is disabled.
func startSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*timescaleSink, error) {
	if !cfg.Candles.Sink {
		return nil, nil
	}

	db := cfg.Database.Timescale
	logger.Info("connecting to database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)
	pool, err := database.Connect(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool, db.Hypertable); err != nil {
		pool.Close()
		return nil, err
	}

	queue := buffer.New[candle.Candle](cfg.Writers.BufferSize)
	w := writer.NewCandleWriter(writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}, candle.Kind(cfg.Candles.WidthMinutes), queue, pool, logger)
	if err := w.Start(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &timescaleSink{queue: queue, writer: w, close: pool.Close}, nil
}

// Push queues a candle for writing.
func (s *timescaleSink) Push(c candle.Candle) {
	s.queue.Send(c)
}

// Stop flushes queued candles and closes the pool.
func (s *timescaleSink) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.writer.Stop(ctx)
	s.close()
}

// sinkFunc returns the candle callback for s, or nil when s is nil.
func sinkFunc(s *timescaleSink) func(candle.Candle) {
	if s == nil {
		return nil
	}
	return s.Push
}
