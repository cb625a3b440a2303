package paper

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rickgao/kalshi-bot/internal/book"
	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
	"github.com/rickgao/kalshi-bot/internal/sim"
)

// ErrUnknownOrder is returned when an order id is not open. Filling an
// unknown order means the engine's bookkeeping is broken and panics.
var ErrUnknownOrder = errors.New("order not open")

// IDPrefix prefixes every order id the engine allocates.
const IDPrefix = "paper:"

// Config controls the fill model.
type Config struct {
	FillOnCross bool // fill crossing orders immediately on submit
}

// DefaultConfig returns a config with FillOnCross enabled.
func DefaultConfig() Config {
	return Config{FillOnCross: true}
}

// Engine is a paper matching engine. It is not safe for concurrent use;
// one engine serves one replay run.
type Engine struct {
	cfg    Config
	emit   event.Emitter
	logger *slog.Logger

	quote  book.Quote
	known  bool
	nextID int
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets where ORDER_ACK, ORDER_FILL and ORDER_CANCEL events go.
func WithEmitter(emit event.Emitter) Option {
	return func(e *Engine) {
		e.emit = emit
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine with no known quote. Order ids start at paper:1.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		nextID: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.emit == nil {
		e.emit = func(event.Event) {}
	}
	return e
}

// OnMarketData updates the known bid and ask from a venue book event and
// reports whether a quote was found. Payloads without a usable shape leave
// the last quote in place.
func (e *Engine) OnMarketData(ev event.Event) bool {
	q, ok := book.Resolve(ev.Payload)
	if !ok {
		return false
	}
	e.quote = q
	e.known = true
	return true
}

// Quote returns the last known bid and ask.
func (e *Engine) Quote() (bid, ask int, ok bool) {
	return e.quote.Bid, e.quote.Ask, e.known
}

// Submit records intent as an open order, emits ORDER_ACK and, when the
// order crosses the known quote, fills it at the submitted price.
func (e *Engine) Submit(intent sim.Intent, st *sim.BotState, tsMs int64) string {
	id := IDPrefix + strconv.Itoa(e.nextID)
	e.nextID++

	st.OpenOrders[id] = intent
	metrics.OrdersSubmitted.WithLabelValues(string(intent.Side)).Inc()
	e.emit(event.New(tsMs, event.OrderAck, map[string]any{
		"order_id": id,
		"intent":   intent.Payload(),
	}))

	if e.cfg.FillOnCross && e.crosses(intent) {
		e.fill(id, st, tsMs)
	}
	return id
}

func (e *Engine) crosses(in sim.Intent) bool {
	if !e.known {
		return false
	}
	switch in.Side {
	case sim.Buy:
		return in.Price >= e.quote.Ask
	case sim.Sell:
		return in.Price <= e.quote.Bid
	}
	return false
}

func (e *Engine) fill(id string, st *sim.BotState, tsMs int64) {
	in, ok := st.OpenOrders[id]
	if !ok {
		panic(fmt.Errorf("paper fill %s: %w", id, ErrUnknownOrder))
	}
	delete(st.OpenOrders, id)
	st.ApplyFill(in.Side, in.Price, in.Qty)

	metrics.OrdersFilled.WithLabelValues(string(in.Side)).Inc()
	e.logger.Debug("paper fill", "order_id", id, "side", in.Side, "price", in.Price, "qty", in.Qty)
	e.emit(event.New(tsMs, event.OrderFill, map[string]any{
		"order_id": id,
		"side":     string(in.Side),
		"price":    in.Price,
		"qty":      in.Qty,
		"contract": in.Contract,
	}))
}

// Cancel removes an open order and emits ORDER_CANCEL.
func (e *Engine) Cancel(id string, st *sim.BotState, tsMs int64) error {
	if _, ok := st.OpenOrders[id]; !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrUnknownOrder)
	}
	delete(st.OpenOrders, id)
	metrics.OrdersCancelled.Inc()
	e.emit(event.New(tsMs, event.OrderCancel, map[string]any{"order_id": id}))
	return nil
}

// CancelAll cancels every open order in id order and returns how many were
// cancelled.
func (e *Engine) CancelAll(st *sim.BotState, tsMs int64) int {
	ids := st.OpenOrderIDs()
	for _, id := range ids {
		// ids come from st, so Cancel cannot fail here.
		_ = e.Cancel(id, st, tsMs)
	}
	return len(ids)
}
