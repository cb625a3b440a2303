package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rickgao/kalshi-bot/internal/event"
)

// feedHealth tracks what each feed last delivered so /health can report
// stalled or disconnected feeds.
type feedHealth struct {
	mu       sync.Mutex
	now      func() time.Time
	staleAge time.Duration
	lastSeen map[event.Type]time.Time
	counts   map[event.Type]int64
	status   map[string]string // provider -> last CONNECTION status
}

func newFeedHealth(staleAge time.Duration) *feedHealth {
	return &feedHealth{
		now:      time.Now,
		staleAge: staleAge,
		lastSeen: make(map[event.Type]time.Time),
		counts:   make(map[event.Type]int64),
		status:   make(map[string]string),
	}
}

// wrap returns an emitter that observes ev before passing it on.
func (h *feedHealth) wrap(next event.Emitter) event.Emitter {
	return func(ev event.Event) {
		h.observe(ev)
		next(ev)
	}
}

func (h *feedHealth) observe(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSeen[ev.Type] = h.now()
	h.counts[ev.Type]++
	if ev.Type == event.Connection {
		provider, _ := ev.Payload["provider"].(string)
		status, _ := ev.Payload["status"].(string)
		if provider != "" {
			h.status[provider] = status
		}
	}
}

type healthReport struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func (h *feedHealth) report() healthReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	rep := healthReport{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	now := h.now()
	types := make(map[string]any, len(h.counts))
	for typ, n := range h.counts {
		age := now.Sub(h.lastSeen[typ])
		types[string(typ)] = map[string]any{
			"count":       n,
			"last_age_ms": age.Milliseconds(),
		}
	}
	rep.Components["events"] = types

	last, ok := h.lastSeen[event.ExternalPrice]
	switch {
	case !ok:
		rep.Status = "degraded"
	case h.staleAge > 0 && now.Sub(last) > h.staleAge:
		rep.Status = "unhealthy"
	}

	conns := make(map[string]string, len(h.status))
	for provider, status := range h.status {
		conns[provider] = status
		if status != "connected" && rep.Status == "healthy" {
			rep.Status = "degraded"
		}
	}
	rep.Components["connections"] = conns

	return rep
}

// ServeHTTP writes the health report as JSON.
func (h *feedHealth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.report()

	w.Header().Set("Content-Type", "application/json")
	if rep.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(rep)
}
