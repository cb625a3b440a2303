package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/kalshi-bot/internal/api"
)

func TestIsActive(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"open", true},
		{"active", true},
		{"unopened", false},
		{"closed", false},
		{"finalized", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isActive(tt.status); got != tt.want {
			t.Errorf("isActive(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestState_Replace(t *testing.T) {
	s := newState()
	now := time.Unix(1700000000, 0)

	changes := s.replace([]api.APIMarket{
		{Ticker: "B", Status: "unopened"},
		{Ticker: "A", Status: "open"},
	}, now)

	want := []MarketChange{
		{Ticker: "A", EventType: ChangeCreated, NewStatus: "open"},
		{Ticker: "B", EventType: ChangeCreated, NewStatus: "unopened"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("first replace = %+v, want %+v", changes, want)
	}
	if got := s.activeTickers(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("activeTickers() = %v, want [A]", got)
	}

	changes = s.replace([]api.APIMarket{
		{Ticker: "B", Status: "open"},
		{Ticker: "C", Status: "open"},
	}, now.Add(time.Minute))

	want = []MarketChange{
		{Ticker: "A", EventType: ChangeRemoved, OldStatus: "open"},
		{Ticker: "B", EventType: ChangeStatus, OldStatus: "unopened", NewStatus: "open"},
		{Ticker: "C", EventType: ChangeCreated, NewStatus: "open"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("second replace = %+v, want %+v", changes, want)
	}
	if got := s.activeTickers(); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("activeTickers() = %v, want [B C]", got)
	}
	if !s.lastSyncAt.Equal(now.Add(time.Minute)) {
		t.Errorf("lastSyncAt = %v, want %v", s.lastSyncAt, now.Add(time.Minute))
	}

	if changes := s.replace([]api.APIMarket{{Ticker: "B", Status: "open"}, {Ticker: "C", Status: "open"}}, now); len(changes) != 0 {
		t.Errorf("unchanged replace = %+v, want none", changes)
	}
}

func TestState_NotifyChange_ChannelFull(t *testing.T) {
	s := newState()

	for i := 0; i < ChangeBufferSize; i++ {
		s.notifyChange(MarketChange{Ticker: "OLD"})
	}
	s.notifyChange(MarketChange{Ticker: "NEW"})

	if got := len(s.changes); got != ChangeBufferSize {
		t.Fatalf("len(changes) = %d, want %d", got, ChangeBufferSize)
	}

	var last MarketChange
	for len(s.changes) > 0 {
		last = <-s.changes
	}
	if last.Ticker != "NEW" {
		t.Errorf("last change = %q, want NEW", last.Ticker)
	}
}

// fakeLister serves canned listings and counts calls.
type fakeLister struct {
	mu       sync.Mutex
	listings [][]api.APIMarket
	calls    int
	status   api.ExchangeStatusResponse
	err      error
}

func (f *fakeLister) GetExchangeStatus(context.Context) (*api.ExchangeStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.status
	return &st, nil
}

func (f *fakeLister) ListMarkets(_ context.Context, _ api.GetMarketsOptions, _ []string, _ string) ([]api.APIMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	i := min(f.calls, len(f.listings)-1)
	f.calls++
	return f.listings[i], nil
}

func TestRegistry_StartAndReconcile(t *testing.T) {
	lister := &fakeLister{
		status: api.ExchangeStatusResponse{ExchangeActive: true, TradingActive: true},
		listings: [][]api.APIMarket{
			{{Ticker: "KXBTC15M-A", Status: "open"}},
			{{Ticker: "KXBTC15M-A", Status: "closed"}, {Ticker: "KXBTC15M-B", Status: "open"}},
		},
	}

	r := NewRegistry(Config{SeriesTicker: "KXBTC15M", ReconcileInterval: 20 * time.Millisecond}, lister, nil)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got, err := r.ActiveMarkets(ctx)
	if err != nil {
		t.Fatalf("ActiveMarkets() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"KXBTC15M-A"}) {
		t.Errorf("ActiveMarkets() = %v, want [KXBTC15M-A]", got)
	}
	if exchange, trading := r.ExchangeActive(); !exchange || !trading {
		t.Errorf("ExchangeActive() = %v, %v, want true, true", exchange, trading)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ = r.ActiveMarkets(ctx)
		if reflect.DeepEqual(got, []string{"KXBTC15M-B"}) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !reflect.DeepEqual(got, []string{"KXBTC15M-B"}) {
		t.Errorf("ActiveMarkets() after reconcile = %v, want [KXBTC15M-B]", got)
	}

	m, ok := r.GetMarket("KXBTC15M-A")
	if !ok || m.Status != "closed" {
		t.Errorf("GetMarket(A) = %+v, %v, want closed", m, ok)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	var events []string
	for len(r.SubscribeChanges()) > 0 {
		ch := <-r.SubscribeChanges()
		events = append(events, ch.Ticker+":"+ch.EventType)
	}
	want := []string{"KXBTC15M-A:created", "KXBTC15M-A:status_change", "KXBTC15M-B:created"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("changes = %v, want %v", events, want)
	}
}

func TestRegistry_StartFails(t *testing.T) {
	lister := &fakeLister{err: errors.New("boom")}
	r := NewRegistry(Config{SeriesTicker: "KXBTC15M"}, lister, nil)

	if err := r.Start(context.Background()); err == nil {
		t.Error("Start() expected error when listing fails")
	}
}

func TestRegistry_ReconcileKeepsListingOnError(t *testing.T) {
	lister := &fakeLister{listings: [][]api.APIMarket{{{Ticker: "X", Status: "open"}}}}
	r := NewRegistry(Config{}, lister, nil)
	if _, err := r.sync(context.Background()); err != nil {
		t.Fatalf("sync() error = %v", err)
	}

	lister.mu.Lock()
	lister.err = errors.New("unavailable")
	lister.mu.Unlock()
	r.reconcile(context.Background())

	got, _ := r.ActiveMarkets(context.Background())
	if !reflect.DeepEqual(got, []string{"X"}) {
		t.Errorf("ActiveMarkets() = %v, want [X]", got)
	}
}

func TestRegistry_ReconcileRefreshesExchangeStatus(t *testing.T) {
	lister := &fakeLister{
		status:   api.ExchangeStatusResponse{ExchangeActive: true, TradingActive: true},
		listings: [][]api.APIMarket{{{Ticker: "X", Status: "open"}}},
	}
	r := NewRegistry(Config{}, lister, nil)
	if err := r.initialSync(context.Background()); err != nil {
		t.Fatalf("initialSync() error = %v", err)
	}

	lister.mu.Lock()
	lister.status = api.ExchangeStatusResponse{ExchangeActive: true, TradingActive: false}
	lister.mu.Unlock()
	r.reconcile(context.Background())

	if exchange, trading := r.ExchangeActive(); !exchange || trading {
		t.Errorf("ExchangeActive() = %v, %v, want true, false", exchange, trading)
	}
}

func TestRegistry_WithRESTClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exchange/status":
			json.NewEncoder(w).Encode(map[string]any{"exchange_active": false, "trading_active": false})
		case "/markets":
			status := r.URL.Query().Get("status")
			json.NewEncoder(w).Encode(map[string]any{
				"markets": []map[string]any{{"ticker": "S-" + status, "status": status}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r := NewRegistry(Config{SeriesTicker: "S", ReconcileInterval: time.Hour}, api.NewClient(server.URL), nil)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	got, _ := r.ActiveMarkets(ctx)
	if !reflect.DeepEqual(got, []string{"S-open"}) {
		t.Errorf("ActiveMarkets() = %v, want [S-open]", got)
	}
	if _, ok := r.GetMarket("S-unopened"); !ok {
		t.Error("unopened market missing from registry")
	}
	if exchange, _ := r.ExchangeActive(); exchange {
		t.Error("ExchangeActive() = true, want false")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Errorf("ReconcileInterval = %v, want 5m", cfg.ReconcileInterval)
	}
	if !reflect.DeepEqual(cfg.Statuses, []string{"open", "unopened"}) {
		t.Errorf("Statuses = %v, want [open unopened]", cfg.Statuses)
	}
}
