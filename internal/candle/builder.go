package candle

import (
	"iter"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// Candle is an OHLC summary of the ticks that fell into one bucket.
type Candle struct {
	CandleStartMs    int64   `json:"candle_start_ms"`
	CandleStartLocal string  `json:"candle_start_local"`
	Symbol           string  `json:"symbol"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Close            float64 `json:"close"`
	Ticks            int     `json:"ticks"`
	FirstTsMs        int64   `json:"first_ts_ms"`
	LastTsMs         int64   `json:"last_ts_ms"`
}

// Builder aggregates ticks one at a time and hands back each candle as soon
// as a tick for a different bucket arrives.
type Builder struct {
	bucketer Bucketer
	symbol   string

	current Candle
	open    bool
}

// NewBuilder creates a Builder. An empty symbol accepts ticks for any symbol.
func NewBuilder(b Bucketer, symbol string) *Builder {
	return &Builder{bucketer: b, symbol: symbol}
}

// Accepts reports whether tick passes the symbol filter. Ticks without a
// symbol always pass.
func (b *Builder) Accepts(tick event.PriceTick) bool {
	return b.symbol == "" || tick.Symbol == "" || tick.Symbol == b.symbol
}

// Update folds tick into the current candle. When the tick starts a new
// bucket, the previous candle is returned with ok set.
func (b *Builder) Update(tick event.PriceTick) (emitted Candle, ok bool) {
	if !b.Accepts(tick) {
		metrics.TicksFiltered.Inc()
		return Candle{}, false
	}
	metrics.TicksProcessed.Inc()

	startMs, label := b.bucketer.Bucket(tick.TsMs)
	if b.open && startMs == b.current.CandleStartMs {
		c := &b.current
		c.High = max(c.High, tick.Mid)
		c.Low = min(c.Low, tick.Mid)
		c.Close = tick.Mid
		c.Ticks++
		c.LastTsMs = tick.TsMs
		return Candle{}, false
	}

	if b.open {
		emitted, ok = b.current, true
		b.countEmitted()
	}

	symbol := b.symbol
	if symbol == "" {
		symbol = tick.Symbol
	}
	b.current = Candle{
		CandleStartMs:    startMs,
		CandleStartLocal: label,
		Symbol:           symbol,
		Open:             tick.Mid,
		High:             tick.Mid,
		Low:              tick.Mid,
		Close:            tick.Mid,
		Ticks:            1,
		FirstTsMs:        tick.TsMs,
		LastTsMs:         tick.TsMs,
	}
	b.open = true
	return emitted, ok
}

// Current returns the in-progress candle, if any.
func (b *Builder) Current() (Candle, bool) {
	return b.current, b.open
}

// Flush returns the in-progress candle and resets the builder.
func (b *Builder) Flush() (Candle, bool) {
	if !b.open {
		return Candle{}, false
	}
	c := b.current
	b.current = Candle{}
	b.open = false
	b.countEmitted()
	return c, true
}

func (b *Builder) countEmitted() {
	metrics.CandlesEmitted.WithLabelValues(Kind(b.bucketer.Minutes())).Inc()
}

// Aggregate lazily turns a tick sequence into candles. Candles are yielded
// when the bucket changes and the last one is yielded when ticks is
// exhausted. Output matches feeding the same ticks through a Builder.
func Aggregate(ticks iter.Seq[event.PriceTick], b Bucketer, symbol string) iter.Seq[Candle] {
	return func(yield func(Candle) bool) {
		builder := NewBuilder(b, symbol)
		for tick := range ticks {
			if c, ok := builder.Update(tick); ok {
				if !yield(c) {
					return
				}
			}
		}
		if c, ok := builder.Flush(); ok {
			yield(c)
		}
	}
}
