package sim

import (
	"slices"

	"github.com/shopspring/decimal"
)

// BotState is the position record for one replay run.
type BotState struct {
	InvYes     float64
	PnLUSD     decimal.Decimal
	FairProb   *float64
	OpenOrders map[string]Intent
}

// NewBotState returns empty state: flat inventory, zero PnL, no fair value
// and no open orders.
func NewBotState() *BotState {
	return &BotState{
		PnLUSD:     decimal.Zero,
		OpenOrders: make(map[string]Intent),
	}
}

var centsPerDollar = decimal.NewFromInt(100)

// ApplyFill books a fill of qty contracts at priceCents. A buy adds
// inventory and pays price/100 per contract; a sell does the reverse.
func (s *BotState) ApplyFill(side Side, priceCents int, qty float64) {
	notional := decimal.NewFromInt(int64(priceCents)).Div(centsPerDollar).Mul(decimal.NewFromFloat(qty))
	switch side {
	case Buy:
		s.InvYes += qty
		s.PnLUSD = s.PnLUSD.Sub(notional)
	case Sell:
		s.InvYes -= qty
		s.PnLUSD = s.PnLUSD.Add(notional)
	}
}

// SetFair stores p as the fair probability.
func (s *BotState) SetFair(p float64) {
	s.FairProb = &p
}

// OpenOrderIDs returns the ids of open orders in sorted order.
func (s *BotState) OpenOrderIDs() []string {
	ids := make([]string, 0, len(s.OpenOrders))
	for id := range s.OpenOrders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// OpenOrder is one entry of a Snapshot.
type OpenOrder struct {
	ID string `json:"order_id"`
	Intent
}

// Snapshot is a comparable, JSON-friendly copy of a BotState.
type Snapshot struct {
	InvYes     float64     `json:"inv_yes"`
	PnLUSD     string      `json:"pnl_usd"`
	FairProb   *float64    `json:"fair_prob"`
	OpenOrders []OpenOrder `json:"open_orders"`
}

// Snapshot copies the state with open orders sorted by id.
func (s *BotState) Snapshot() Snapshot {
	snap := Snapshot{
		InvYes:     s.InvYes,
		PnLUSD:     s.PnLUSD.StringFixed(2),
		OpenOrders: make([]OpenOrder, 0, len(s.OpenOrders)),
	}
	if s.FairProb != nil {
		f := *s.FairProb
		snap.FairProb = &f
	}
	for _, id := range s.OpenOrderIDs() {
		snap.OpenOrders = append(snap.OpenOrders, OpenOrder{ID: id, Intent: s.OpenOrders[id]})
	}
	return snap
}
