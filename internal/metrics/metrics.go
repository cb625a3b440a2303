package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kalshi_bot"

// Event log metrics
var (
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "events_appended_total",
			Help:      "Events appended to the event log, by type",
		},
		[]string{"type"},
	)

	AppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "append_errors_total",
			Help:      "Failed event log appends",
		},
	)

	LinesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "lines_skipped_total",
			Help:      "Blank or malformed lines skipped while reading a log",
		},
	)
)

// Candle metrics
var (
	TicksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "ticks_processed_total",
			Help:      "Price ticks folded into a candle",
		},
	)

	TicksFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "ticks_filtered_total",
			Help:      "Price ticks ignored because of a symbol mismatch",
		},
	)

	CandlesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "emitted_total",
			Help:      "Finalized candles, by kind",
		},
		[]string{"kind"},
	)
)

// Paper trading metrics
var (
	OrdersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "orders_submitted_total",
			Help:      "Paper orders acknowledged, by side",
		},
		[]string{"side"},
	)

	OrdersFilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "orders_filled_total",
			Help:      "Paper orders filled on cross, by side",
		},
		[]string{"side"},
	)

	OrdersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "orders_cancelled_total",
			Help:      "Paper orders cancelled",
		},
	)

	ReplayEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_total",
			Help:      "Events delivered to replay handlers",
		},
	)
)

// Collector metrics
var (
	CollectorMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "messages_total",
			Help:      "Messages received from upstream feeds, by provider",
		},
		[]string{"provider"},
	)

	CollectorParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "parse_errors_total",
			Help:      "Upstream messages that could not be parsed, by provider",
		},
		[]string{"provider"},
	)

	CollectorReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts, by provider",
		},
		[]string{"provider"},
	)

	CandleRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "candle_rows_total",
			Help:      "Candle rows inserted into TimescaleDB",
		},
	)
)

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Route is an extra endpoint served next to the scrape handler.
type Route struct {
	Pattern string
	Handler http.Handler
}

// Serve exposes the scrape handler on port at path, plus any extra routes,
// until ctx is cancelled.
func Serve(ctx context.Context, port int, path string, logger *slog.Logger, routes ...Route) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	for _, r := range routes {
		mux.Handle(r.Pattern, r.Handler)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting metrics server", "port", port, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
