package eventlog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-bot/internal/event"
)

func TestAppend_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "events.jsonl")

	require.NoError(t, Append(path, event.New(1, event.Connection, map[string]any{"status": "connected"})))
	require.NoError(t, Append(path, event.New(2, event.Connection, nil)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
}

func TestReadAll_SortsAndPreservesTies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, Extend(path, []event.Event{
		event.New(300, event.VenueBook, map[string]any{"n": "a"}),
		event.New(100, event.VenueBook, map[string]any{"n": "b"}),
		event.New(300, event.VenueBook, map[string]any{"n": "c"}),
		event.New(200, event.VenueBook, map[string]any{"n": "d"}),
	}))

	evs, err := ReadAll(path)
	require.NoError(t, err)

	var order []string
	for _, ev := range evs {
		order = append(order, ev.Payload["n"].(string))
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, order)
}

func TestReadAll_SkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := strings.Join([]string{
		`{"ts_ms":2,"type":"EXTERNAL_PRICE","payload":{"mid":1}}`,
		``,
		`not json`,
		`{"ts_ms":"x","type":"VENUE_BOOK"}`,
		`{"ts_ms":3,"type":"NOPE"}`,
		`   `,
		`{"ts_ms":1,"type":"VENUE_TRADE"}`,
		`{"ts_ms":4,"type":"VENUE_BOOK"}{"ts_ms":5,"type":"VENUE_BOOK"}`,
		`{"ts_ms":6,"type":"VENUE_BOOK"} garbage`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	evs, st, err := ReadAllStats(path)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, event.VenueTrade, evs[0].Type)
	assert.Equal(t, map[string]any{}, evs[0].Payload)
	assert.Equal(t, Stats{Lines: 7, Events: 2, Skipped: 5}, st)
}

func TestReadAll_SkipsOversizedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := strings.Join([]string{
		`{"ts_ms":1,"type":"EXTERNAL_PRICE","payload":{"mid":1}}`,
		strings.Repeat("x", MaxLineSize+1),
		`{"ts_ms":2,"type":"EXTERNAL_PRICE","payload":{"mid":2}}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	evs, st, err := ReadAllStats(path)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(1), evs[0].TsMs)
	assert.Equal(t, int64(2), evs[1].TsMs)
	assert.Equal(t, Stats{Lines: 3, Events: 2, Skipped: 1}, st)
}

func TestEachLine(t *testing.T) {
	input := "a\n\n" + strings.Repeat("y", MaxLineSize) + "\n" + strings.Repeat("z", MaxLineSize+10) + "\nb"

	var got []int
	oversized := 0
	err := EachLine(strings.NewReader(input), func(line []byte) bool {
		got = append(got, len(line))
		return true
	}, func() { oversized++ })
	require.NoError(t, err)
	assert.Equal(t, []int{1, MaxLineSize, 1}, got)
	assert.Equal(t, 1, oversized)
}

func TestEachLine_Stop(t *testing.T) {
	n := 0
	err := EachLine(strings.NewReader("a\nb\nc\n"), func([]byte) bool {
		n++
		return n < 2
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadAll_MissingFile(t *testing.T) {
	evs, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestReadAll_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	in := []event.Event{
		event.PriceEvent(1000, "binance", "BTCUSDT", 49999, 50001),
		event.New(1001, event.VenueBook, map[string]any{"raw": map[string]any{"bid": 49, "ask": 51}}),
	}
	require.NoError(t, Extend(path, in))

	out, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		want, err := event.MarshalLine(in[i])
		require.NoError(t, err)
		got, err := event.MarshalLine(out[i])
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(filepath.Join(dir, "b.jsonl"), event.New(5, event.VenueTrade, nil)))
	require.NoError(t, Append(filepath.Join(dir, "a.jsonl"), event.New(5, event.VenueBook, nil)))
	require.NoError(t, Append(filepath.Join(dir, "a.jsonl"), event.New(9, event.Connection, nil)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	evs, st, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, event.VenueBook, evs[0].Type)
	assert.Equal(t, event.VenueTrade, evs[1].Type)
	assert.Equal(t, event.Connection, evs[2].Type)
	assert.Equal(t, 3, st.Events)
}

func TestRecorder_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var mirror bytes.Buffer
	rec := NewRecorder(path, WithMirror(&mirror))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				rec.Emit(event.New(int64(i), event.ExternalPrice, map[string]any{"worker": fmt.Sprint(w), "mid": float64(i)}))
			}
		}(w)
	}
	wg.Wait()

	evs, st, err := ReadAllStats(path)
	require.NoError(t, err)
	assert.Len(t, evs, 100)
	assert.Zero(t, st.Skipped)
	assert.Equal(t, 100, strings.Count(mirror.String(), "\n"))
}

func TestRecorder_ErrKeepsFirstFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	rec := NewRecorder(filepath.Join(blocker, "events.jsonl"))
	assert.NoError(t, rec.Err())

	rec.Emit(event.New(1, event.OrderAck, nil))
	rec.Emit(event.New(2, event.OrderFill, nil))

	err := rec.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(event.OrderAck))

	ok := NewRecorder(filepath.Join(dir, "ok.jsonl"))
	ok.Emit(event.New(1, event.OrderAck, nil))
	assert.NoError(t, ok.Err())
}
