package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rickgao/kalshi-bot/internal/api"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"open,unopened", []string{"open", "unopened"}},
		{" open , ,closed ", []string{"open", "closed"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("series_ticker"); got != "KXBTC15M" {
			t.Errorf("series_ticker = %q, want KXBTC15M", got)
		}
		status := r.URL.Query().Get("status")
		json.NewEncoder(w).Encode(map[string]any{
			"markets": []map[string]any{
				{"ticker": "KXBTC15M-B-" + status, "status": status, "yes_bid": 40, "yes_ask": 45},
				{"ticker": "OTHER-" + status, "status": status},
			},
		})
	}))
	defer server.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfgYAML := "log:\n  level: error\nkalshi:\n  rest_url: " + server.URL + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	opts := options{config: cfgPath, statuses: "unopened,open", prefix: "kxbtc", limit: 10, maxPages: 1, asJSON: true}
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var markets []api.APIMarket
	if err := json.Unmarshal(out.Bytes(), &markets); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var tickers []string
	for _, m := range markets {
		tickers = append(tickers, m.Ticker)
	}
	want := []string{"KXBTC15M-B-open", "KXBTC15M-B-unopened"}
	if !reflect.DeepEqual(tickers, want) {
		t.Errorf("tickers = %v, want %v", tickers, want)
	}

	out.Reset()
	opts.asJSON = false
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() table error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "TICKER") || !strings.Contains(out.String(), "KXBTC15M-B-open") {
		t.Errorf("table output = %q", out.String())
	}
}

func TestRun_SingleTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/KXBTC15M-C" {
			t.Errorf("path = %q, want /markets/KXBTC15M-C", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"market": map[string]any{"ticker": "KXBTC15M-C", "status": "open", "yes_bid": 61, "yes_ask": 63},
		})
	}))
	defer server.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfgYAML := "log:\n  level: error\nkalshi:\n  rest_url: " + server.URL + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), options{config: cfgPath, ticker: "KXBTC15M-C"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "KXBTC15M-C") || !strings.Contains(lines[1], "61") {
		t.Errorf("table output = %q", out.String())
	}
}
