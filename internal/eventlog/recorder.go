package eventlog

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rickgao/kalshi-bot/internal/event"
	"github.com/rickgao/kalshi-bot/internal/metrics"
)

// Recorder appends events to a fixed log path. Its Emit method is the
// callback handed to collectors.
type Recorder struct {
	path   string
	logger *slog.Logger

	mirrorMu sync.Mutex
	mirror   io.Writer

	errMu sync.Mutex
	err   error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used for append failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMirror copies every recorded line to w, for example stdout so the
// stream can be piped into the live candle builder.
func WithMirror(w io.Writer) RecorderOption {
	return func(r *Recorder) {
		r.mirror = w
	}
}

// NewRecorder creates a Recorder writing to path.
func NewRecorder(path string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes ev to the log and the mirror, if any.
func (r *Recorder) Append(ev event.Event) error {
	if err := Append(r.path, ev); err != nil {
		return err
	}
	if r.mirror != nil {
		line, err := event.MarshalLine(ev)
		if err != nil {
			return err
		}
		r.mirrorMu.Lock()
		_, err = r.mirror.Write(line)
		r.mirrorMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Emit appends ev and logs any failure. Emitters have no error path, so a
// failed write is counted, the event is dropped and the first failure is
// kept for Err.
func (r *Recorder) Emit(ev event.Event) {
	if err := r.Append(ev); err != nil {
		metrics.AppendErrors.Inc()
		r.logger.Error("failed to record event",
			"error", err,
			"type", ev.Type,
			"path", r.path,
		)
		r.errMu.Lock()
		if r.err == nil {
			r.err = fmt.Errorf("record %s event: %w", ev.Type, err)
		}
		r.errMu.Unlock()
	}
}

// Err returns the first write failure seen by Emit, or nil. Callers check it
// once producers have stopped; a non-nil result means the log is incomplete.
func (r *Recorder) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}
