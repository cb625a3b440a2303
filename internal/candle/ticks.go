package candle

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
)

// TicksFromEvents yields the price ticks contained in evs, in order.
func TicksFromEvents(evs []event.Event) iter.Seq[event.PriceTick] {
	return func(yield func(event.PriceTick) bool) {
		for _, ev := range evs {
			tick, ok := event.ParsePriceTick(ev)
			if !ok {
				continue
			}
			if !yield(tick) {
				return
			}
		}
	}
}

// FileTicks streams price ticks from event log files in the given order,
// without sorting. The first read error stops iteration and is reported by
// Err.
type FileTicks struct {
	Paths []string

	stats eventlog.Stats
	err   error
}

// All yields every tick from every file.
func (f *FileTicks) All() iter.Seq[event.PriceTick] {
	return func(yield func(event.PriceTick) bool) {
		for _, path := range f.Paths {
			stop, err := f.scanFile(path, yield)
			if err != nil {
				f.err = err
				return
			}
			if stop {
				return
			}
		}
	}
}

func (f *FileTicks) scanFile(path string, yield func(event.PriceTick) bool) (stopped bool, err error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	// Scan has no early exit, so later ticks are dropped once yield
	// returns false.
	st, err := eventlog.Scan(file, func(ev event.Event) {
		if stopped {
			return
		}
		tick, ok := event.ParsePriceTick(ev)
		if !ok {
			return
		}
		if !yield(tick) {
			stopped = true
		}
	})
	f.stats.Lines += st.Lines
	f.stats.Events += st.Events
	f.stats.Skipped += st.Skipped
	return stopped, err
}

// Err returns the first error met by All.
func (f *FileTicks) Err() error {
	return f.err
}

// Stats returns line counts accumulated by All.
func (f *FileTicks) Stats() eventlog.Stats {
	return f.stats
}

// InputFiles expands inputs into event log paths. Directories contribute
// their *.jsonl files in lexical order; files are kept as given.
func InputFiles(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}
		if !info.IsDir() {
			out = append(out, in)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(in, "*.jsonl"))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", in, err)
		}
		slices.Sort(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// Tap calls fn for every candle before passing it on.
func Tap(candles iter.Seq[Candle], fn func(Candle)) iter.Seq[Candle] {
	return func(yield func(Candle) bool) {
		for c := range candles {
			fn(c)
			if !yield(c) {
				return
			}
		}
	}
}

// Build aggregates the ticks in paths and writes the resulting candle log
// to out. sink, if non-nil, sees every candle as it is written.
func Build(paths []string, b Bucketer, symbol, out string, sink func(Candle)) (Summary, error) {
	src := &FileTicks{Paths: paths}
	candles := Aggregate(src.All(), b, symbol)
	if sink != nil {
		candles = Tap(candles, sink)
	}

	sum, err := WriteFile(out, Kind(b.Minutes()), candles)
	if err != nil {
		return sum, err
	}
	if err := src.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}
