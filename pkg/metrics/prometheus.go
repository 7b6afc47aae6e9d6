package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	quotes      *prometheus.CounterVec
	eventsTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		quotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_quotes_total",
				Help: "Annuity quotes computed",
			},
			[]string{"currency", "retro"},
		),
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_events_recorded_total",
				Help: "Telemetry events written to a sink",
			},
			[]string{"backend", "event"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricer_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricer_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordQuote(currency string, retro bool) {
	r.quotes.WithLabelValues(currency, strconv.FormatBool(retro)).Inc()
}

// RecordEvent counts an event persisted or published by backend.
func (r *Recorder) RecordEvent(backend, name string) {
	r.eventsTotal.WithLabelValues(backend, name).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
