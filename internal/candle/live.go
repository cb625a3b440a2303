package candle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/kalshi-bot/internal/buffer"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// LiveConfig configures a Live runner.
type LiveConfig struct {
	Bucketer      Bucketer
	Symbol        string
	OutPath       string        // append-only candle log
	LatestPath    string        // snapshot of the in-progress candle
	StatsInterval time.Duration // how often STATS is logged
	PollInterval  time.Duration // idle wait between queue polls
}

// LiveStats summarizes a live run. Pointer fields are nil until a tick has
// been seen.
type LiveStats struct {
	TicksSeen     int64  `json:"ticks_seen"`
	LastTickMs    *int64 `json:"last_tick_ms"`
	Candles       int    `json:"candles"`
	CandleStartMs *int64 `json:"candle_start_ms"`
	CandleTicks   int    `json:"candle_ticks"`
	LinesSkipped  int64  `json:"lines_skipped"`
}

// Live builds candles from a stream of event log lines as they arrive.
type Live struct {
	cfg     LiveConfig
	kind    string
	logger  *slog.Logger
	sink    func(Candle)
	builder *Builder

	stats LiveStats
}

// NewLive creates a Live runner. sink, if non-nil, receives every finalized
// candle after it has been appended to the candle log.
func NewLive(cfg LiveConfig, sink func(Candle), logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	return &Live{
		cfg:     cfg,
		kind:    Kind(cfg.Bucketer.Minutes()),
		logger:  logger,
		sink:    sink,
		builder: NewBuilder(cfg.Bucketer, cfg.Symbol),
	}
}

// ReadLines copies newline-delimited lines from r into lines and closes the
// queue at EOF. Lines longer than eventlog.MaxLineSize are dropped and
// counted in skipped. It is meant to run in its own goroutine.
func ReadLines(r io.Reader, lines *buffer.Growable[string]) (skipped int, err error) {
	defer lines.Close()
	err = eventlog.EachLine(r, func(line []byte) bool {
		return lines.Send(string(line))
	}, func() {
		skipped++
		metrics.LinesSkipped.Inc()
	})
	if err != nil {
		return skipped, fmt.Errorf("read lines: %w", err)
	}
	return skipped, nil
}

// Run consumes lines until the queue is closed and drained or ctx is done.
// Either way the in-progress candle is flushed to the candle log and the
// final stats are returned.
func (l *Live) Run(ctx context.Context, lines *buffer.Growable[string]) (LiveStats, error) {
	ticker := time.NewTicker(l.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.finish()
		case <-ticker.C:
			l.logStats(lines)
		default:
		}

		line, ok := lines.TryReceive()
		if !ok {
			if lines.Drained() {
				return l.finish()
			}
			select {
			case <-ctx.Done():
				return l.finish()
			case <-ticker.C:
				l.logStats(lines)
			case <-time.After(l.cfg.PollInterval):
			}
			continue
		}

		if err := l.handleLine(line); err != nil {
			return l.stats, err
		}
	}
}

// Stats returns the current counters.
func (l *Live) Stats() LiveStats {
	st := l.stats
	if c, ok := l.builder.Current(); ok {
		start := c.CandleStartMs
		st.CandleStartMs = &start
		st.CandleTicks = c.Ticks
	}
	return st
}

func (l *Live) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	ev, err := event.ParseLine([]byte(line))
	if err != nil {
		l.stats.LinesSkipped++
		return nil
	}
	tick, ok := event.ParsePriceTick(ev)
	if !ok || !l.builder.Accepts(tick) {
		return nil
	}

	first := l.stats.TicksSeen == 0
	l.stats.TicksSeen++
	ts := tick.TsMs
	l.stats.LastTickMs = &ts

	if first {
		if err := Touch(l.cfg.OutPath); err != nil {
			return err
		}
	}

	if done, ok := l.builder.Update(tick); ok {
		if err := l.emit(done); err != nil {
			return err
		}
	}

	if l.cfg.LatestPath != "" {
		cur, _ := l.builder.Current()
		if err := WriteLatest(l.cfg.LatestPath, NewRecord(l.kind, cur)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Live) emit(c Candle) error {
	if err := AppendRecord(l.cfg.OutPath, NewRecord(l.kind, c)); err != nil {
		return fmt.Errorf("append candle: %w", err)
	}
	l.stats.Candles++
	if l.sink != nil {
		l.sink(c)
	}
	return nil
}

func (l *Live) finish() (LiveStats, error) {
	final := l.Stats()
	if c, ok := l.builder.Flush(); ok {
		if err := l.emit(c); err != nil {
			return final, err
		}
		final.Candles = l.stats.Candles
	}
	return final, nil
}

func (l *Live) logStats(lines *buffer.Growable[string]) {
	st := l.Stats()
	q := lines.Stats()
	l.logger.Info("STATS",
		"ticks_seen", st.TicksSeen,
		"last_tick_ms", derefOr(st.LastTickMs),
		"current_candle_start_ms", derefOr(st.CandleStartMs),
		"current_candle_ticks", st.CandleTicks,
		"candles", st.Candles,
		"lines_read", q.TotalIn,
		"lines_queued", q.Count,
	)
}

func derefOr(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
