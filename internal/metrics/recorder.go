// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts gateway actions by symbol, action and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makerfill_gateway_actions_total",
		Help: "Total gateway place/cancel actions by outcome classification.",
	}, []string{"symbol", "action", "outcome"})

	// FillsTotal counts accepted fill events per symbol.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makerfill_fills_total",
		Help: "Total accepted fill events.",
	}, []string{"symbol"})

	// FilledNotional tracks the absolute filled notional per symbol.
	FilledNotional = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "makerfill_filled_notional",
		Help: "Absolute filled notional per symbol.",
	}, []string{"symbol"})

	// SymbolsCompleted counts symbols that reached the completed state.
	SymbolsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "makerfill_symbols_completed_total",
		Help: "Symbols that reached the completed state.",
	})

	// StreamReconnects counts stream connection attempts after the first.
	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "makerfill_stream_reconnects_total",
		Help: "Stream connection attempts after the first.",
	})

	// EventsTotal counts decoded stream events by type.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makerfill_stream_events_total",
		Help: "Decoded stream events by type.",
	}, []string{"type"})
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordAction records a classified gateway action.
func (r *Recorder) RecordAction(symbol, action, outcome string) {
	ActionsTotal.WithLabelValues(symbol, action, outcome).Inc()
}

// RecordFill records an accepted fill event.
func (r *Recorder) RecordFill(symbol string, filledNotional float64) {
	FillsTotal.WithLabelValues(symbol).Inc()
	FilledNotional.WithLabelValues(symbol).Set(filledNotional)
}

// RecordCompleted records a symbol reaching the completed state.
func (r *Recorder) RecordCompleted(symbol string) {
	SymbolsCompleted.Inc()
}

// RecordReconnect records a stream reconnection attempt.
func (r *Recorder) RecordReconnect() {
	StreamReconnects.Inc()
}

// RecordEvent records a decoded stream event.
func (r *Recorder) RecordEvent(eventType string) {
	EventsTotal.WithLabelValues(eventType).Inc()
}
