package candle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-bot/internal/buffer"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
)

func TestWriteFile_RoundTrip(t *testing.T) {
	b := nyBucketer(t, 5)
	candles := slices.Collect(Aggregate(slices.Values(generateTicks(t)), b, "BTCUSDT"))
	require.NotEmpty(t, candles)

	out := filepath.Join(t.TempDir(), "candles", "btc_5m.jsonl")
	sum, err := WriteFile(out, Kind(5), slices.Values(candles))
	require.NoError(t, err)

	assert.Equal(t, out, sum.Out)
	assert.Equal(t, len(candles), sum.Candles)
	require.NotNil(t, sum.First)
	require.NotNil(t, sum.Last)
	assert.Equal(t, candles[0].CandleStartMs, *sum.First)
	assert.Equal(t, candles[len(candles)-1].CandleStartMs, *sum.Last)

	records, err := ReadFile(out)
	require.NoError(t, err)
	require.Len(t, records, len(candles))
	for i, r := range records {
		assert.Equal(t, "CANDLE_5M", r.Type)
		assert.Equal(t, candles[i], r.Candle)
	}
}

func TestWriteFile_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.jsonl")
	sum, err := WriteFile(out, Kind(5), slices.Values([]Candle(nil)))
	require.NoError(t, err)
	assert.Zero(t, sum.Candles)
	assert.Nil(t, sum.First)
	assert.Nil(t, sum.Last)

	data, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"first":null`)
}

func TestMarshalRecord_Compact(t *testing.T) {
	line, err := MarshalRecord(NewRecord(Kind(15), Candle{CandleStartMs: 1, Symbol: "BTCUSDT", Ticks: 1}))
	require.NoError(t, err)
	s := string(line)
	assert.True(t, strings.HasPrefix(s, `{"type":"CANDLE_15M","candle_start_ms":1,`))
	assert.NotContains(t, s, ": ")
	assert.True(t, strings.HasSuffix(s, "}\n"))
}

func TestReadFile_SkipsForeignLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	content := `{"type":"CANDLE_5M","candle_start_ms":1,"ticks":2}
garbage
{"ts_ms":1,"type":"EXTERNAL_PRICE","payload":{}}

{"type":"CANDLE_15M","candle_start_ms":2,"ticks":1}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Ticks)
	assert.Equal(t, "CANDLE_15M", records[1].Type)
}

func TestWriteLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	rec := NewRecord(Kind(15), Candle{CandleStartMs: 1700000000000, CandleStartLocal: "x", Symbol: "BTCUSDT", Open: 1, High: 2, Low: 0.5, Close: 1.5, Ticks: 4, FirstTsMs: 1700000000001, LastTsMs: 1700000000999})

	require.NoError(t, WriteLatest(path, rec))
	rec.Ticks = 5
	require.NoError(t, WriteLatest(path, rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasSuffix(s, "}\n"))
	assert.Contains(t, s, "\n  \"candle_start_ms\": 1700000000000,")
	assert.Contains(t, s, `"ticks": 5`)

	// keys appear in sorted order
	keys := []string{"candle_start_local", "candle_start_ms", "close", "first_ts_ms", "high", "last_ts_ms", "low", "open", "symbol", "ticks", "type"}
	last := -1
	for _, k := range keys {
		idx := strings.Index(s, `"`+k+`"`)
		require.GreaterOrEqual(t, idx, 0, k)
		assert.Greater(t, idx, last, k)
		last = idx
	}

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not be left behind")
}

func writeTickLog(t *testing.T, path string, ticks []event.PriceTick) {
	t.Helper()
	evs := make([]event.Event, 0, len(ticks))
	for _, tk := range ticks {
		evs = append(evs, event.New(tk.TsMs, event.ExternalPrice, map[string]any{
			"provider": tk.Provider, "symbol": tk.Symbol, "mid": tk.Mid,
		}))
	}
	require.NoError(t, eventlog.Extend(path, evs))
}

func TestBuild_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	ticks := generateTicks(t)
	half := len(ticks) / 2
	writeTickLog(t, filepath.Join(dir, "a.jsonl"), ticks[:half])
	writeTickLog(t, filepath.Join(dir, "b.jsonl"), ticks[half:])
	require.NoError(t, eventlog.Append(filepath.Join(dir, "a.jsonl"), event.New(1, event.VenueBook, nil)))

	paths, err := InputFiles([]string{dir})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	b := nyBucketer(t, 5)
	var sunk []Candle
	out := filepath.Join(dir, "out", "candles.jsonl")
	sum, err := Build(paths, b, "BTCUSDT", out, func(c Candle) { sunk = append(sunk, c) })
	require.NoError(t, err)

	want := slices.Collect(Aggregate(slices.Values(ticks), b, "BTCUSDT"))
	assert.Equal(t, len(want), sum.Candles)
	assert.Equal(t, want, sunk)
}

func TestBuild_MissingInput(t *testing.T) {
	_, err := Build([]string{filepath.Join(t.TempDir(), "nope.jsonl")}, nyBucketer(t, 5), "", filepath.Join(t.TempDir(), "o.jsonl"), nil)
	assert.Error(t, err)
}

func priceLines(t *testing.T, ticks []event.PriceTick) string {
	t.Helper()
	var sb strings.Builder
	for _, tk := range ticks {
		line, err := event.MarshalLine(event.New(tk.TsMs, event.ExternalPrice, map[string]any{"symbol": tk.Symbol, "mid": tk.Mid}))
		require.NoError(t, err)
		sb.Write(line)
	}
	return sb.String()
}

func TestLive_StdinMatchesBatch(t *testing.T) {
	dir := t.TempDir()
	b := nyBucketer(t, 15)
	ticks := generateTicks(t)

	input := priceLines(t, ticks) + "not json\n\n"
	lines := buffer.New[string](16)
	go ReadLines(strings.NewReader(input), lines)

	var sunk []Candle
	live := NewLive(LiveConfig{
		Bucketer:   b,
		Symbol:     "BTCUSDT",
		OutPath:    filepath.Join(dir, "candles.jsonl"),
		LatestPath: filepath.Join(dir, "latest.json"),
	}, func(c Candle) { sunk = append(sunk, c) }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := live.Run(ctx, lines)
	require.NoError(t, err)

	want := slices.Collect(Aggregate(slices.Values(ticks), b, "BTCUSDT"))
	assert.Equal(t, want, sunk)
	assert.Equal(t, len(want), final.Candles)
	assert.Equal(t, int64(1), final.LinesSkipped)
	require.NotNil(t, final.CandleStartMs)
	assert.Equal(t, want[len(want)-1].CandleStartMs, *final.CandleStartMs)
	assert.Equal(t, want[len(want)-1].Ticks, final.CandleTicks)

	records, err := ReadFile(filepath.Join(dir, "candles.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, len(want))
	assert.Equal(t, "CANDLE_15M", records[0].Type)

	data, err := os.ReadFile(filepath.Join(dir, "latest.json"))
	require.NoError(t, err)
	var latest Record
	require.NoError(t, json.Unmarshal(data, &latest))
	assert.Equal(t, want[len(want)-1], latest.Candle)
}

func TestReadLines_SkipsOversizedLine(t *testing.T) {
	big := `{"ts_ms":2,"type":"EXTERNAL_PRICE","payload":{"pad":"` + strings.Repeat("x", eventlog.MaxLineSize) + `"}}`
	input := `{"ts_ms":1,"type":"EXTERNAL_PRICE","payload":{"mid":1}}` + "\n" + big + "\n" + `{"ts_ms":3,"type":"EXTERNAL_PRICE","payload":{"mid":3}}` + "\n"

	lines := buffer.New[string](4)
	skipped, err := ReadLines(strings.NewReader(input), lines)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, lines.Stats().Count)

	got := lines.DrainTo(0)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"ts_ms":1`)
	assert.Contains(t, got[1], `"ts_ms":3`)
	assert.True(t, lines.Drained())
}

func TestLive_CancelFlushesOpenCandle(t *testing.T) {
	dir := t.TempDir()
	base := nyMillis(t, 2024, time.January, 15, 10, 0, 0)
	lines := buffer.New[string](4)
	lines.Send(fmt.Sprintf(`{"ts_ms":%d,"type":"EXTERNAL_PRICE","payload":{"mid":1}}`, base))
	lines.Send(fmt.Sprintf(`{"ts_ms":%d,"type":"EXTERNAL_PRICE","payload":{"mid":2}}`, base+1000))

	live := NewLive(LiveConfig{
		Bucketer:      nyBucketer(t, 15),
		OutPath:       filepath.Join(dir, "candles.jsonl"),
		StatsInterval: 5 * time.Millisecond,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	final, err := live.Run(ctx, lines)
	require.NoError(t, err)
	assert.Equal(t, int64(2), final.TicksSeen)
	assert.Equal(t, 1, final.Candles)

	records, err := ReadFile(filepath.Join(dir, "candles.jsonl"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Ticks)
	assert.Equal(t, 2.0, records[0].Close)
}

func TestLive_TouchesOutputOnFirstTick(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "candles.jsonl")
	lines := buffer.New[string](4)

	live := NewLive(LiveConfig{Bucketer: nyBucketer(t, 5), OutPath: out}, nil, nil)
	require.NoError(t, live.handleLine(`{"ts_ms":1,"type":"EXTERNAL_PRICE","payload":{"mid":1}}`))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	lines.Close()
	_, err = live.Run(context.Background(), lines)
	require.NoError(t, err)
	records, err := ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFollow_ReadsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"ts_ms":1,"type":"EXTERNAL_PRICE","payload":{"mid":1}}`+"\n"), 0o644))

	lines := buffer.New[string](4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, lines, nil) }()

	waitFor := func(n int) {
		deadline := time.Now().Add(5 * time.Second)
		for lines.Stats().Count < n && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitFor(1)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ts_ms":2,"type":"EXTERNAL_PRICE",`)
	require.NoError(t, err)
	_, err = f.WriteString(`"payload":{"mid":2}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	waitFor(2)

	cancel()
	require.NoError(t, <-done)

	got := lines.DrainTo(0)
	require.Len(t, got, 2)
	assert.Contains(t, got[1], `"mid":2`)
	assert.True(t, lines.Drained())
}
