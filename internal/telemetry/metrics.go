package telemetry

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	handlerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_handler_outcomes_total",
			Help: "Handler invocations by outcome",
		},
		[]string{"handler", "status", "kind"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noise_handler_duration_seconds",
			Help:    "Duration of handler invocations",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"handler"},
	)

	pushTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noise_push_tokens_total",
			Help: "Device tokens targeted by new-post pushes, by delivery result",
		},
		[]string{"result"},
	)
)

// Metrics records every handler outcome in Prometheus.
type Metrics struct{}

func (Metrics) Observe(_ context.Context, o services.Outcome) {
	handlerOutcomes.WithLabelValues(o.Handler, string(o.Status), string(o.Kind)).Inc()
	handlerDuration.WithLabelValues(o.Handler).Observe(o.Duration.Seconds())

	if o.Recipients > 0 {
		pushTokens.WithLabelValues("delivered").Add(float64(o.Delivered))
		if failed := o.Recipients - o.Delivered; failed > 0 {
			pushTokens.WithLabelValues("undelivered").Add(float64(failed))
		}
	}
}
