package eventlog

import (
	"bufio"
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// MaxLineSize bounds a single log line.
const MaxLineSize = 4 << 20

// Stats describes one read pass over a log.
type Stats struct {
	Lines   int // non-blank lines seen
	Events  int // lines decoded into events
	Skipped int // malformed lines dropped
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.Events += o.Events
	s.Skipped += o.Skipped
}

// Append writes ev as one line at the end of the file at path. Parent
// directories are created as needed. The file is opened and closed on every
// call so independent writers only ever interleave whole lines.
func Append(path string, ev event.Event) error {
	return Extend(path, []event.Event{ev})
}

// Extend appends every event in evs with a single open and a single write.
func Extend(path string, evs []event.Event) error {
	if len(evs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, ev := range evs {
		line, err := event.MarshalLine(ev)
		if err != nil {
			return err
		}
		buf.Write(line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("append event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close event log: %w", err)
	}

	for _, ev := range evs {
		metrics.EventsAppended.WithLabelValues(string(ev.Type)).Inc()
	}
	return nil
}

// Scan decodes every line of r and calls fn for each valid event, in file
// order. Blank lines are ignored. Malformed lines, including lines longer
// than MaxLineSize, are counted and skipped.
func Scan(r io.Reader, fn func(event.Event)) (Stats, error) {
	var st Stats
	skip := func() {
		st.Skipped++
		metrics.LinesSkipped.Inc()
	}

	err := EachLine(r, func(line []byte) bool {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			return true
		}
		st.Lines++

		ev, err := event.ParseLine(line)
		if err != nil {
			skip()
			return true
		}
		st.Events++
		fn(ev)
		return true
	}, func() {
		st.Lines++
		skip()
	})
	if err != nil {
		return st, fmt.Errorf("scan event log: %w", err)
	}
	return st, nil
}

// EachLine calls fn with every non-empty line of r, without the trailing
// newline, until fn returns false or r is exhausted. The slice is only valid
// during the call. A line longer than MaxLineSize is discarded and reported
// through oversized, and reading continues with the next line.
func EachLine(r io.Reader, fn func(line []byte) bool, oversized func()) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	tooLong := false

	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			n := len(chunk)
			if n > 0 && chunk[n-1] == '\n' {
				n--
			}
			if len(line)+n > MaxLineSize {
				tooLong = true
				line = line[:0]
			} else {
				line = append(line, chunk[:n]...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		switch {
		case tooLong:
			if oversized != nil {
				oversized()
			}
		case len(line) > 0:
			if !fn(line) {
				return nil
			}
		}
		line = line[:0]
		tooLong = false

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ReadAll returns every valid event in the file, stably sorted by TsMs.
// A missing file yields an empty slice.
func ReadAll(path string) ([]event.Event, error) {
	evs, _, err := ReadAllStats(path)
	return evs, err
}

// ReadAllStats is ReadAll that also reports how many lines were skipped.
func ReadAllStats(path string) ([]event.Event, Stats, error) {
	evs, st, err := readFile(path)
	if err != nil {
		return nil, st, err
	}
	Sort(evs)
	return evs, st, nil
}

// ReadDir reads every *.jsonl file in dir in lexical order and returns the
// combined events stably sorted by TsMs.
func ReadDir(dir string) ([]event.Event, Stats, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("list event logs: %w", err)
	}
	slices.Sort(paths)

	var all []event.Event
	var total Stats
	for _, p := range paths {
		evs, st, err := readFile(p)
		total.add(st)
		if err != nil {
			return nil, total, err
		}
		all = append(all, evs...)
	}
	Sort(all)
	return all, total, nil
}

// Sort orders evs by TsMs, keeping file order for equal timestamps.
func Sort(evs []event.Event) {
	slices.SortStableFunc(evs, func(a, b event.Event) int {
		return cmp.Compare(a.TsMs, b.TsMs)
	})
}

func readFile(path string) ([]event.Event, Stats, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []event.Event{}, Stats{}, nil
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	evs := []event.Event{}
	st, err := Scan(f, func(ev event.Event) {
		evs = append(evs, ev)
	})
	if err != nil {
		return nil, st, err
	}
	return evs, st, nil
}
