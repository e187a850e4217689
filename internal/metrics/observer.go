// Package metrics exports ingest telemetry.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// Outcome labels for a finished ingest.
const (
	OutcomeStored = "stored"
	OutcomeReused = "reused"
	OutcomeFailed = "failed"
)

// Observer captures telemetry for ingest requests.
type Observer interface {
	RecordIngest(kind string, duration time.Duration, sizeBytes int64, reused bool, err error)
	RecordStrip(status int)
}

// PrometheusObserver exports ingest metrics to Prometheus.
type PrometheusObserver struct {
	duration    *prometheus.HistogramVec
	requests    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	storedBytes prometheus.Counter
	strips      *prometheus.CounterVec
}

// NewPrometheusObserver registers the ingest metrics with reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "mediaboard_ingest"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var (
		o   PrometheusObserver
		err error
	)
	if o.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Latency of ingest requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if o.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Ingest requests by kind and outcome.",
	}, []string{"kind", "outcome"})); err != nil {
		return nil, err
	}
	if o.failures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Failed ingest requests by failure type.",
	}, []string{"kind", "failure_type"})); err != nil {
		return nil, err
	}
	if o.storedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stored_bytes_total",
		Help:      "Cumulative size of newly stored files.",
	})); err != nil {
		return nil, err
	}
	if o.strips, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metadata_strips_total",
		Help:      "Metadata strip attempts by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	return &o, nil
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register ingest metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) RecordIngest(kind string, duration time.Duration, sizeBytes int64, reused bool, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(kind).Observe(duration.Seconds())

	switch {
	case err != nil:
		o.requests.WithLabelValues(kind, OutcomeFailed).Inc()
		o.failures.WithLabelValues(kind, string(schema.ClassifyError(err))).Inc()
	case reused:
		o.requests.WithLabelValues(kind, OutcomeReused).Inc()
	default:
		o.requests.WithLabelValues(kind, OutcomeStored).Inc()
		if sizeBytes > 0 {
			o.storedBytes.Add(float64(sizeBytes))
		}
	}
}

func (o *PrometheusObserver) RecordStrip(status int) {
	if o == nil {
		return
	}
	result := "ok"
	if status != 0 {
		result = "error"
	}
	o.strips.WithLabelValues(result).Inc()
}

type nopObserver struct{}

func (nopObserver) RecordIngest(string, time.Duration, int64, bool, error) {}

func (nopObserver) RecordStrip(int) {}

// Nop returns an Observer that records nothing.
func Nop() Observer { return nopObserver{} }
