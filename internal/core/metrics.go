package core

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "eavcore"
	metricsSubsystem = "warmup"
)

// Metrics holds the warm-up collectors.
type Metrics struct {
	Units         *prometheus.CounterVec
	Declarations  *prometheus.CounterVec
	WriteFailures prometheus.Counter
	Duration      prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Units: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "units_total",
			Help:      "Generated units written, by render format.",
		}, []string{"format"}),
		Declarations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "declarations_total",
			Help:      "Accessor declarations emitted, by accessor kind.",
		}, []string{"kind"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "write_failures_total",
			Help:      "Units the output sink refused.",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "duration_seconds",
			Help:      "Wall time of complete warm-up runs in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// WriteTextfile exports everything g gathers in the node-exporter textfile
// format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
