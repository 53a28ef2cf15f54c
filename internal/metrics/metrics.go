// Package metrics counts conversions, warnings and submissions for batch runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "codemeta2mp"

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the process-local registry and its collectors
type Metrics struct {
	Registry *prometheus.Registry

	Conversions *prometheus.CounterVec
	Warnings    *prometheus.CounterVec
	Submissions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// New creates a registry with every collector registered
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "CodeMeta sources converted, by result.",
		}, []string{"result"}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Conversion warnings, by code.",
		}, []string{"code"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Marketplace submissions, by method and result.",
		}, []string{"method", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
	m.Registry.MustRegister(m.Conversions, m.Warnings, m.Submissions, m.Duration)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveConversion records one converted source. Nil receivers are no-ops.
func (m *Metrics) ObserveConversion(err error, warnings map[string]int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(result(err)).Inc()
	for code, n := range warnings {
		m.Warnings.WithLabelValues(code).Add(float64(n))
	}
	m.Duration.WithLabelValues("convert").Observe(elapsed.Seconds())
}

// ObserveSubmission records one Marketplace call
func (m *Metrics) ObserveSubmission(method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(method, result(err)).Inc()
	m.Duration.WithLabelValues("submit").Observe(elapsed.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
