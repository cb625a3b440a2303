package market

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/kalshi-bot/internal/api"
)

// ChangeBufferSize is the capacity of the change notification channel.
const ChangeBufferSize = 100

// Change event types.
const (
	ChangeCreated = "created"
	ChangeStatus  = "status_change"
	ChangeRemoved = "removed"
)

// MarketChange describes a market appearing, changing status or dropping out
// of the listing.
type MarketChange struct {
	Ticker    string
	EventType string
	OldStatus string
	NewStatus string
}

// isActive reports whether a market with status accepts orders.
func isActive(status string) bool {
	switch status {
	case "open", "active":
		return true
	}
	return false
}

// registryState holds the thread-safe market cache.
type registryState struct {
	mu sync.RWMutex

	// All listed markets indexed by ticker.
	markets map[string]api.APIMarket

	// Exchange status.
	exchangeActive bool
	tradingActive  bool

	// Last successful REST sync timestamp.
	lastSyncAt time.Time

	changes chan MarketChange
}

func newState() *registryState {
	return &registryState{
		markets: make(map[string]api.APIMarket),
		changes: make(chan MarketChange, ChangeBufferSize),
	}
}

// getMarket returns a market by ticker (read-locked).
func (s *registryState) getMarket(ticker string) (api.APIMarket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[ticker]
	return m, ok
}

// activeTickers returns the sorted tickers of active markets (read-locked).
func (s *registryState) activeTickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.markets))
	for ticker, m := range s.markets {
		if isActive(m.Status) {
			out = append(out, ticker)
		}
	}
	slices.Sort(out)
	return out
}

// replace swaps in a fresh listing and returns what changed relative to the
// previous one (write-locked).
func (s *registryState) replace(listed []api.APIMarket, now time.Time) []MarketChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]api.APIMarket, len(listed))
	var changes []MarketChange
	for _, m := range listed {
		next[m.Ticker] = m
		prev, ok := s.markets[m.Ticker]
		switch {
		case !ok:
			changes = append(changes, MarketChange{Ticker: m.Ticker, EventType: ChangeCreated, NewStatus: m.Status})
		case prev.Status != m.Status:
			changes = append(changes, MarketChange{Ticker: m.Ticker, EventType: ChangeStatus, OldStatus: prev.Status, NewStatus: m.Status})
		}
	}
	for ticker, prev := range s.markets {
		if _, ok := next[ticker]; !ok {
			changes = append(changes, MarketChange{Ticker: ticker, EventType: ChangeRemoved, OldStatus: prev.Status})
		}
	}
	slices.SortFunc(changes, func(a, b MarketChange) int {
		return strings.Compare(a.Ticker, b.Ticker)
	})

	s.markets = next
	s.lastSyncAt = now
	return changes
}

// notifyChange sends a change to the changes channel (non-blocking).
func (s *registryState) notifyChange(change MarketChange) {
	select {
	case s.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-s.changes:
			s.changes <- change
		default:
		}
	}
}
