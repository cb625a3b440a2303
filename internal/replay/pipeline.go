package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/paper"
	"github.com/rickgao/kalshi-bot/internal/sim"
	"github.com/rickgao/kalshi-bot/internal/strategy"
)

// RequoteMode decides what happens to resting orders when the strategy
// quotes again.
type RequoteMode string

const (
	// RequoteStack submits new quotes on top of whatever is still open.
	RequoteStack RequoteMode = "stack"
	// RequoteReplace cancels every open order before submitting new quotes.
	RequoteReplace RequoteMode = "replace"
)

// ParseRequoteMode parses a mode name. The empty string means RequoteStack.
func ParseRequoteMode(s string) (RequoteMode, error) {
	switch RequoteMode(s) {
	case "", RequoteStack:
		return RequoteStack, nil
	case RequoteReplace:
		return RequoteReplace, nil
	}
	return "", fmt.Errorf("unknown requote mode %q (want stack or replace)", s)
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Strategy strategy.Config
	Paper    paper.Config
	Requote  RequoteMode
}

// DefaultPipelineConfig returns the baseline strategy with crossing fills
// and stacked requotes.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Strategy: strategy.DefaultConfig(),
		Paper:    paper.DefaultConfig(),
		Requote:  RequoteStack,
	}
}

// Summary describes one pipeline run.
type Summary struct {
	RunID   string       `json:"run_id"`
	Events  int          `json:"events"`
	Acks    int          `json:"acks"`
	Fills   int          `json:"fills"`
	Cancels int          `json:"cancels"`
	State   sim.Snapshot `json:"state"`

	// Emitted holds every ORDER_* event in emission order.
	Emitted []event.Event `json:"-"`
}

// Pipeline replays a log through the strategy and the paper engine.
type Pipeline struct {
	cfg    PipelineConfig
	engine *Engine
	logger *slog.Logger
	sink   event.Emitter
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSink forwards every emitted order event to sink as well, for example
// a recorder writing an output log.
func WithSink(sink event.Emitter) PipelineOption {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.cfg.Requote == "" {
		p.cfg.Requote = RequoteStack
	}
	p.engine = NewEngine(p.logger)
	return p
}

// Run replays the log at path.
func (p *Pipeline) Run(ctx context.Context, path string) (Summary, error) {
	return p.run(ctx, func(ctx context.Context, h Handler) (*sim.BotState, int, error) {
		var n int
		st, err := p.engine.Run(ctx, path, func(ev event.Event, st *sim.BotState) {
			n++
			h(ev, st)
		})
		return st, n, err
	})
}

// RunEvents replays an in-memory sequence.
func (p *Pipeline) RunEvents(ctx context.Context, evs []event.Event) (Summary, error) {
	return p.run(ctx, func(ctx context.Context, h Handler) (*sim.BotState, int, error) {
		var n int
		st, err := p.engine.RunEvents(ctx, evs, func(ev event.Event, st *sim.BotState) {
			n++
			h(ev, st)
		})
		return st, n, err
	})
}

func (p *Pipeline) run(ctx context.Context, replay func(context.Context, Handler) (*sim.BotState, int, error)) (Summary, error) {
	id := uuid.NewString()
	ctx = WithRunID(ctx, id)

	out := &event.Collector{}
	px := paper.New(p.cfg.Paper,
		paper.WithEmitter(event.Tee(out.Emit, p.sink)),
		paper.WithLogger(p.logger.With("run_id", id)),
	)

	handle := func(ev event.Event, st *sim.BotState) {
		if ev.Type == event.VenueBook {
			px.OnMarketData(ev)
		}
		intents := strategy.Decide(ev, st, p.cfg.Strategy)
		if len(intents) > 0 && p.cfg.Requote == RequoteReplace {
			px.CancelAll(st, ev.TsMs)
		}
		for _, in := range intents {
			px.Submit(in, st, ev.TsMs)
		}
	}

	st, n, err := replay(ctx, handle)
	sum := Summary{RunID: id, Events: n, Emitted: out.Events()}
	counts := out.CountByType()
	sum.Acks = counts[event.OrderAck]
	sum.Fills = counts[event.OrderFill]
	sum.Cancels = counts[event.OrderCancel]
	if st != nil {
		sum.State = st.Snapshot()
	}
	return sum, err
}
