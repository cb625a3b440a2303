package paper

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-bot/internal/book"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/sim"
)

func bookEvent(ts int64, raw map[string]any) event.Event {
	return event.New(ts, event.VenueBook, map[string]any{"market_ticker": "KXBTC", "raw": raw})
}

func newEngine(t *testing.T, cfg Config) (*Engine, *event.Collector) {
	t.Helper()
	c := &event.Collector{}
	return New(cfg, WithEmitter(c.Emit)), c
}

func TestOnMarketData(t *testing.T) {
	e, _ := newEngine(t, DefaultConfig())

	_, _, ok := e.Quote()
	assert.False(t, ok)

	assert.True(t, e.OnMarketData(bookEvent(1, map[string]any{"yes_bid": 49, "yes_ask": 51})))
	bid, ask, ok := e.Quote()
	require.True(t, ok)
	assert.Equal(t, 49, bid)
	assert.Equal(t, 51, ask)

	// Unusable payloads keep the last quote.
	assert.False(t, e.OnMarketData(bookEvent(2, map[string]any{"bid": "x", "ask": 50})))
	assert.False(t, e.OnMarketData(event.New(3, event.VenueBook, map[string]any{"raw": "nope"})))
	assert.False(t, e.OnMarketData(event.New(4, event.VenueBook, nil)))
	bid, ask, _ = e.Quote()
	assert.Equal(t, 49, bid)
	assert.Equal(t, 51, ask)
	assert.Equal(t, book.ShapeYesBidAsk, e.quote.Shape)
}

func TestSubmit_CrossingRules(t *testing.T) {
	tests := []struct {
		name   string
		intent sim.Intent
		filled bool
	}{
		{"buy at ask fills", sim.Intent{Side: sim.Buy, Price: 51, Qty: 1, Contract: "YES"}, true},
		{"buy through ask fills", sim.Intent{Side: sim.Buy, Price: 60, Qty: 1, Contract: "YES"}, true},
		{"buy inside rests", sim.Intent{Side: sim.Buy, Price: 50, Qty: 1, Contract: "YES"}, false},
		{"sell at bid fills", sim.Intent{Side: sim.Sell, Price: 49, Qty: 1, Contract: "YES"}, true},
		{"sell inside rests", sim.Intent{Side: sim.Sell, Price: 50, Qty: 1, Contract: "YES"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, c := newEngine(t, DefaultConfig())
			e.OnMarketData(bookEvent(1, map[string]any{"bid": 49, "ask": 51}))
			st := sim.NewBotState()

			id := e.Submit(tt.intent, st, 1000)
			assert.Equal(t, "paper:1", id)

			evs := c.Events()
			require.NotEmpty(t, evs)
			assert.Equal(t, event.OrderAck, evs[0].Type)
			assert.Equal(t, id, evs[0].Payload["order_id"])
			assert.Equal(t, tt.intent.Payload(), evs[0].Payload["intent"])

			if tt.filled {
				require.Len(t, evs, 2)
				fill := evs[1]
				assert.Equal(t, event.OrderFill, fill.Type)
				assert.Equal(t, int64(1000), fill.TsMs)
				assert.Equal(t, id, fill.Payload["order_id"])
				assert.Equal(t, tt.intent.Price, fill.Payload["price"])
				assert.Equal(t, tt.intent.Qty, fill.Payload["qty"])
				assert.NotContains(t, st.OpenOrders, id)
			} else {
				assert.Len(t, evs, 1)
				assert.Equal(t, tt.intent, st.OpenOrders[id])
			}
		})
	}
}

func TestSubmit_NoQuoteNeverFills(t *testing.T) {
	e, c := newEngine(t, DefaultConfig())
	st := sim.NewBotState()
	e.Submit(sim.Intent{Side: sim.Buy, Price: 99, Qty: 1, Contract: "YES"}, st, 1)
	e.Submit(sim.Intent{Side: sim.Sell, Price: 1, Qty: 1, Contract: "YES"}, st, 2)

	assert.Len(t, st.OpenOrders, 2)
	assert.Equal(t, map[event.Type]int{event.OrderAck: 2}, c.CountByType())
}

func TestSubmit_FillOnCrossDisabled(t *testing.T) {
	e, c := newEngine(t, Config{FillOnCross: false})
	e.OnMarketData(bookEvent(1, map[string]any{"bid": 49, "ask": 51}))
	st := sim.NewBotState()
	e.Submit(sim.Intent{Side: sim.Buy, Price: 99, Qty: 1, Contract: "YES"}, st, 1)

	assert.Len(t, st.OpenOrders, 1)
	assert.Equal(t, map[event.Type]int{event.OrderAck: 1}, c.CountByType())
}

func TestSubmit_IDsIncrease(t *testing.T) {
	e, _ := newEngine(t, DefaultConfig())
	st := sim.NewBotState()
	for i, want := range []string{"paper:1", "paper:2", "paper:3"} {
		got := e.Submit(sim.Intent{Side: sim.Buy, Price: 10, Qty: 1, Contract: "YES"}, st, int64(i))
		assert.Equal(t, want, got)
	}
}

func TestSubmit_FillUpdatesPosition(t *testing.T) {
	e, _ := newEngine(t, DefaultConfig())
	e.OnMarketData(bookEvent(1, map[string]any{"best_bid": 40, "best_ask": 45}))
	st := sim.NewBotState()

	e.Submit(sim.Intent{Side: sim.Buy, Price: 45, Qty: 2, Contract: "YES"}, st, 10)
	assert.Equal(t, 2.0, st.InvYes)
	assert.True(t, st.PnLUSD.Equal(decimal.RequireFromString("-0.90")))

	e.Submit(sim.Intent{Side: sim.Sell, Price: 40, Qty: 2, Contract: "YES"}, st, 11)
	assert.Equal(t, 0.0, st.InvYes)
	assert.True(t, st.PnLUSD.Equal(decimal.RequireFromString("-0.10")))
}

func TestFill_UnknownOrderPanics(t *testing.T) {
	e, _ := newEngine(t, DefaultConfig())
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrUnknownOrder))
	}()
	e.fill("paper:404", sim.NewBotState(), 1)
}

func TestCancel(t *testing.T) {
	e, c := newEngine(t, DefaultConfig())
	st := sim.NewBotState()
	id := e.Submit(sim.Intent{Side: sim.Buy, Price: 10, Qty: 1, Contract: "YES"}, st, 1)

	require.NoError(t, e.Cancel(id, st, 2))
	assert.Empty(t, st.OpenOrders)

	err := e.Cancel(id, st, 3)
	assert.True(t, errors.Is(err, ErrUnknownOrder))

	evs := c.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, event.OrderCancel, evs[1].Type)
	assert.Equal(t, id, evs[1].Payload["order_id"])
}

func TestCancelAll(t *testing.T) {
	e, c := newEngine(t, DefaultConfig())
	st := sim.NewBotState()
	for range 3 {
		e.Submit(sim.Intent{Side: sim.Sell, Price: 90, Qty: 1, Contract: "YES"}, st, 1)
	}

	assert.Equal(t, 3, e.CancelAll(st, 5))
	assert.Empty(t, st.OpenOrders)
	assert.Zero(t, e.CancelAll(st, 6))

	var cancelled []any
	for _, ev := range c.Events() {
		if ev.Type == event.OrderCancel {
			cancelled = append(cancelled, ev.Payload["order_id"])
		}
	}
	assert.Equal(t, []any{"paper:1", "paper:2", "paper:3"}, cancelled)
}
