package candle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/rickgao/kalshi-bot/internal/eventlog"
)

// Record is one line of a candle log: the candle plus its kind.
type Record struct {
	Type string `json:"type"`
	Candle
}

// NewRecord wraps c with the discriminator for kind.
func NewRecord(kind string, c Candle) Record {
	return Record{Type: kind, Candle: c}
}

// Summary describes a candle log written by WriteFile. First and Last are
// the start times of the first and last candle, nil when none were written.
type Summary struct {
	Out     string `json:"out"`
	Candles int    `json:"candles"`
	First   *int64 `json:"first"`
	Last    *int64 `json:"last"`
}

// MarshalRecord encodes r as a compact JSON line with a trailing newline.
func MarshalRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode candle: %w", err)
	}
	return buf.Bytes(), nil
}

// AppendRecord appends r to the candle log at path.
func AppendRecord(path string, r Record) error {
	line, err := MarshalRecord(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create candle dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open candle log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append candle log: %w", err)
	}
	return f.Close()
}

// Touch creates the candle log at path if it does not exist.
func Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create candle dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("touch candle log: %w", err)
	}
	return f.Close()
}

// WriteFile replaces the file at path with one record per candle.
func WriteFile(path, kind string, candles iter.Seq[Candle]) (Summary, error) {
	sum := Summary{Out: path}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sum, fmt.Errorf("create candle dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return sum, fmt.Errorf("create candle log: %w", err)
	}
	w := bufio.NewWriter(f)

	for c := range candles {
		line, err := MarshalRecord(NewRecord(kind, c))
		if err != nil {
			f.Close()
			return sum, err
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			return sum, fmt.Errorf("write candle log: %w", err)
		}
		start := c.CandleStartMs
		if sum.First == nil {
			sum.First = &start
		}
		sum.Last = &start
		sum.Candles++
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return sum, fmt.Errorf("flush candle log: %w", err)
	}
	if err := f.Close(); err != nil {
		return sum, fmt.Errorf("close candle log: %w", err)
	}
	return sum, nil
}

// ReadFile loads every candle record in path, skipping lines that are not
// candle records. A missing file yields no records.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open candle log: %w", err)
	}
	defer f.Close()

	var out []Record
	err = eventlog.EachLine(f, func(line []byte) bool {
		var r Record
		if err := json.Unmarshal(bytes.TrimSpace(line), &r); err != nil {
			return true
		}
		if strings.HasPrefix(r.Type, "CANDLE_") {
			out = append(out, r)
		}
		return true
	}, nil)
	if err != nil {
		return out, fmt.Errorf("read candle log: %w", err)
	}
	return out, nil
}

// WriteLatest atomically replaces path with a pretty-printed snapshot of r.
// Keys are sorted and the file ends with a newline. Readers never observe a
// partially written snapshot.
func WriteLatest(path string, r Record) error {
	compact, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(compact))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
