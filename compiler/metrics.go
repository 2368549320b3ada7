package compiler

import (
	"context"
	"errors"
	"strings"
	"time"

	zqe "github.com/brimdata/edgeql/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts compiles by statement kind and outcome and records
// compile latency.
type Metrics struct {
	compiles *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the compiler metrics with registerer.  A nil
// registerer uses a private registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)
	return &Metrics{
		compiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeql_compiles_total",
				Help: "Number of statements compiled.",
			},
			[]string{"kind", "result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgeql_compile_seconds",
				Help:    "Time taken to compile a statement.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observe(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.compiles.WithLabelValues(kind, resultLabel(err)).Inc()
	m.latency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return strings.ReplaceAll(zqe.KindOf(err).String(), " ", "_")
}
