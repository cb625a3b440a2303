package replay

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/eventlog"
	"github.com/rickgao/kalshi-bot/internal/metrics"
	"github.com/rickgao/kalshi-bot/internal/sim"
)

// Handler is called once per event, in order, with the run's state.
type Handler func(ev event.Event, st *sim.BotState)

type runIDKey struct{}

// WithRunID returns a context carrying id as the replay run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id stored in ctx, if any.
func RunIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// Engine replays event logs. It holds no per-run state and may be reused.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Run loads the log at path, sorts it by timestamp and replays it. A
// missing log replays as empty. Malformed lines are skipped.
func (e *Engine) Run(ctx context.Context, path string, h Handler) (*sim.BotState, error) {
	evs, stats, err := eventlog.ReadAllStats(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if stats.Skipped > 0 {
		e.logger.Warn("skipped malformed log lines", "path", path, "skipped", stats.Skipped)
	}
	return e.replay(ctx, evs, h)
}

// RunEvents replays an in-memory sequence. evs is not modified; a sorted
// copy is replayed, with ties kept in input order.
func (e *Engine) RunEvents(ctx context.Context, evs []event.Event, h Handler) (*sim.BotState, error) {
	sorted := slices.Clone(evs)
	eventlog.Sort(sorted)
	return e.replay(ctx, sorted, h)
}

func (e *Engine) replay(ctx context.Context, evs []event.Event, h Handler) (*sim.BotState, error) {
	id, ok := RunIDFrom(ctx)
	if !ok {
		id = uuid.NewString()
	}
	logger := e.logger.With("run_id", id)
	logger.Info("replay started", "events", len(evs))

	st := sim.NewBotState()
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			logger.Warn("replay interrupted", "replayed", i, "events", len(evs))
			return st, err
		}
		h(ev, st)
		metrics.ReplayEvents.Inc()
	}

	logger.Info("replay finished", "events", len(evs), "open_orders", len(st.OpenOrders))
	return st, nil
}
