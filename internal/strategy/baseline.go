package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/sim"
)

// Config holds the quoting parameters.
type Config struct {
	BaseFair  float64 // initial fair probability, in (0,1)
	EdgeCents int     // distance from fair to each quote
	Size      float64 // quantity per quote
	Contract  string
}

// DefaultConfig returns the baseline parameters: fair 0.50, two cents of
// edge, one contract on YES.
func DefaultConfig() Config {
	return Config{
		BaseFair:  0.50,
		EdgeCents: 2,
		Size:      1,
		Contract:  sim.ContractYes,
	}
}

// Validate checks the parameter ranges.
func (c Config) Validate() error {
	var errs []error
	if !(c.BaseFair > 0 && c.BaseFair < 1) {
		errs = append(errs, fmt.Errorf("base_fair must be in (0,1), got %v", c.BaseFair))
	}
	if c.EdgeCents < 0 {
		errs = append(errs, fmt.Errorf("edge_cents must be non-negative, got %d", c.EdgeCents))
	}
	if !(c.Size > 0) {
		errs = append(errs, fmt.Errorf("size must be positive, got %v", c.Size))
	}
	if c.Contract == "" {
		errs = append(errs, errors.New("contract is required"))
	}
	return errors.Join(errs...)
}

const (
	minPrice = 1
	maxPrice = 99
)

// Decide returns the intents for ev. If st has no fair probability yet it is
// set to cfg.BaseFair, whatever the event type.
//
// Only VENUE_BOOK produces intents: a buy at fair-edge and a sell at
// fair+edge, both clamped to [1,99] cents. EXTERNAL_PRICE is reserved for
// fair value updates and currently returns nothing.
func Decide(ev event.Event, st *sim.BotState, cfg Config) []sim.Intent {
	if st.FairProb == nil {
		st.SetFair(cfg.BaseFair)
	}

	if ev.Type != event.VenueBook {
		return nil
	}

	fair := FairCents(*st.FairProb)
	return []sim.Intent{
		{Side: sim.Buy, Price: max(minPrice, fair-cfg.EdgeCents), Qty: cfg.Size, Contract: cfg.Contract},
		{Side: sim.Sell, Price: min(maxPrice, fair+cfg.EdgeCents), Qty: cfg.Size, Contract: cfg.Contract},
	}
}

// FairCents converts a probability to a price in [1,99] cents. Halves round
// to even.
func FairCents(p float64) int {
	p = max(0.01, min(0.99, p))
	return int(math.RoundToEven(p * 100))
}
